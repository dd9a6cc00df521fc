package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PublicPrefix es la ruta HTTP bajo la que se sirven los archivos del LocalStore.
const PublicPrefix = "/uploads"

// LocalStore guarda archivos en disco; el router los sirve bajo PublicPrefix.
type LocalStore struct {
	dir     string
	baseURL string
}

func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("storage dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &LocalStore{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

// Dir devuelve el directorio raíz del store.
func (s *LocalStore) Dir() string {
	return s.dir
}

// Put sobrescribe el archivo si la clave ya existe.
func (s *LocalStore) Put(ctx context.Context, key, _ string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorage, err)
	}
	cleaned, err := CleanKey(key)
	if err != nil {
		return "", err
	}

	fullPath := filepath.Join(s.dir, filepath.FromSlash(cleaned))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("%w: create dir: %v", ErrStorage, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("%w: create temp file: %v", ErrStorage, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("%w: write file: %v", ErrStorage, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("%w: close file: %v", ErrStorage, err)
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("%w: rename file: %v", ErrStorage, err)
	}

	return s.baseURL + PublicPrefix + "/" + cleaned, nil
}
