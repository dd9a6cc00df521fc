package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"pampapro/internal/domain"
	"pampapro/internal/repository"
	"pampapro/internal/storage"
)

// MaxUploadSize es el tamaño máximo aceptado por archivo.
const MaxUploadSize = 10 * 1024 * 1024

// Tipos de archivo aceptados por /upload.
const (
	UploadKindImage       = "imagen"
	UploadKindDocument    = "documento"
	UploadKindCertificate = "certificado"
)

var allowedUploadTypes = map[string][]string{
	UploadKindImage:       {"image/jpeg", "image/png", "image/webp", "image/gif"},
	UploadKindDocument:    {"application/pdf", "application/msword", "text/plain"},
	UploadKindCertificate: {"application/pdf", "image/jpeg", "image/png"},
}

var (
	ErrFileRequired       = errors.New("file is required")
	ErrFileTooLarge       = errors.New("file too large")
	ErrFileTypeNotAllowed = errors.New("file type not allowed")
)

// UploadInput es un archivo recibido. El tipo se detecta siempre por contenido;
// ni el Content-Type declarado ni la extensión del nombre original se usan.
type UploadInput struct {
	UserID       string
	Kind         string
	OriginalName string
	Data         []byte
}

// UploadService guarda archivos genéricos de los usuarios y registra cada subida.
type UploadService struct {
	logger  *zap.Logger
	store   storage.Store
	uploads repository.UploadRepository
}

func NewUploadService(logger *zap.Logger, store storage.Store, uploads repository.UploadRepository) *UploadService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UploadService{
		logger:  logger,
		store:   store,
		uploads: uploads,
	}
}

func (s *UploadService) Upload(ctx context.Context, input UploadInput) (domain.Upload, error) {
	kind := strings.ToLower(strings.TrimSpace(input.Kind))
	if kind == "" {
		kind = UploadKindImage
	}
	if len(input.Data) == 0 {
		return domain.Upload{}, ErrFileRequired
	}
	if len(input.Data) > MaxUploadSize {
		return domain.Upload{}, ErrFileTooLarge
	}
	contentType := normalizeContentType(mimetype.Detect(input.Data).String())
	if !uploadTypeAllowed(kind, contentType) {
		return domain.Upload{}, fmt.Errorf("%w: %s for %s", ErrFileTypeNotAllowed, contentType, kind)
	}

	fileName, err := randomFileName(contentType)
	if err != nil {
		return domain.Upload{}, err
	}
	url, err := s.store.Put(ctx, fileName, contentType, input.Data)
	if err != nil {
		return domain.Upload{}, err
	}

	upload := domain.Upload{
		ID:           uuid.NewString(),
		UserID:       input.UserID,
		FileName:     fileName,
		OriginalName: input.OriginalName,
		FileType:     contentType,
		FileSize:     int64(len(input.Data)),
		URL:          url,
		Kind:         kind,
		UploadedAt:   time.Now().UTC(),
	}
	if err := s.uploads.Create(ctx, upload); err != nil {
		return domain.Upload{}, fmt.Errorf("record upload: %w", err)
	}

	s.logger.Info("file uploaded",
		zap.String("upload_id", upload.ID),
		zap.String("user_id", upload.UserID),
		zap.String("kind", kind),
		zap.Int64("size", upload.FileSize),
	)
	return upload, nil
}

func uploadTypeAllowed(kind, contentType string) bool {
	for _, allowed := range allowedUploadTypes[kind] {
		if allowed == contentType {
			return true
		}
	}
	return false
}

func normalizeContentType(contentType string) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return ct
}

// randomFileName arma un nombre hex aleatorio con la extensión del tipo detectado.
func randomFileName(contentType string) (string, error) {
	ext := storage.ExtensionFor(contentType)
	if ext == "" {
		return "", fmt.Errorf("%w: no extension for %s", ErrFileTypeNotAllowed, contentType)
	}
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf) + ext, nil
}
