package face

import "strings"

// Registry resuelve proveedores por nombre. No hay cadena de fallback.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		if p == nil {
			continue
		}
		r.providers[normalizeName(p.Name())] = p
	}
	return r
}

// Resolve devuelve el proveedor pedido o un *UnsupportedProviderError.
func (r *Registry) Resolve(name string) (Provider, error) {
	if r != nil {
		if p, ok := r.providers[normalizeName(name)]; ok {
			return p, nil
		}
	}
	return nil, &UnsupportedProviderError{Provider: name}
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
