package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"pampapro/internal/domain"
)

type UploadRepository interface {
	Create(ctx context.Context, upload domain.Upload) error
}

type PgUploadRepository struct {
	pool *pgxpool.Pool
}

func NewPgUploadRepository(pool *pgxpool.Pool) *PgUploadRepository {
	return &PgUploadRepository{pool: pool}
}

func (r *PgUploadRepository) Create(ctx context.Context, upload domain.Upload) error {
	const query = `
		INSERT INTO uploads (id, user_id, file_name, original_name, file_type, file_size, url, kind, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.pool.Exec(ctx, query,
		upload.ID,
		upload.UserID,
		upload.FileName,
		upload.OriginalName,
		upload.FileType,
		upload.FileSize,
		upload.URL,
		upload.Kind,
		upload.UploadedAt,
	)
	return err
}
