// Package storage guarda archivos subidos y devuelve URLs públicas para recuperarlos.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrStorage envuelve cualquier falla de I/O o de red al persistir un objeto.
var ErrStorage = errors.New("storage error")

// Store persiste bytes bajo una clave y devuelve la URL donde quedan disponibles.
type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}

var extensions = map[string]string{
	"image/jpeg":         ".jpg",
	"image/png":          ".png",
	"image/webp":         ".webp",
	"image/gif":          ".gif",
	"application/pdf":    ".pdf",
	"application/msword": ".doc",
	"text/plain":         ".txt",
}

// ExtensionFor devuelve la extensión de archivo para un content type conocido, o "" si no hay.
func ExtensionFor(contentType string) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return extensions[ct]
}

// CleanKey normaliza una clave de objeto y rechaza rutas que escapan del prefijo base.
func CleanKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("%w: empty key", ErrStorage)
	}
	cleaned := path.Clean("/" + key)
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." {
		return "", fmt.Errorf("%w: invalid key %q", ErrStorage, key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return "", fmt.Errorf("%w: invalid key %q", ErrStorage, key)
		}
	}
	return cleaned, nil
}
