package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pampapro/internal/db"
	"pampapro/internal/domain"
)

// ErrAttemptNotReviewable indica que el intento ya tiene una decisión final.
var ErrAttemptNotReviewable = errors.New("verification attempt is not reviewable")

// VerificationRepository persiste intentos de verificación y la promoción del usuario.
type VerificationRepository interface {
	// RecordAttempt inserta el intento y, si promote es true, promueve al usuario en la misma transacción.
	RecordAttempt(ctx context.Context, attempt domain.VerificationAttempt, promote bool) error
	GetByID(ctx context.Context, id string) (domain.VerificationAttempt, error)
	ListByUserID(ctx context.Context, userID string) ([]domain.VerificationAttempt, error)
	// Resolve aplica una decisión manual a un intento pendiente de revisión.
	Resolve(ctx context.Context, id string, status domain.VerificationStatus, reviewerID string, at time.Time) (domain.VerificationAttempt, error)
}

type PgVerificationRepository struct {
	pool *pgxpool.Pool
}

func NewPgVerificationRepository(pool *pgxpool.Pool) *PgVerificationRepository {
	return &PgVerificationRepository{pool: pool}
}

const attemptColumns = `id, user_id, document_front_url, document_back_url, selfie_url, similarity_score, liveness_score, status, provider, metadata, reviewed_by, reviewed_at, created_at, updated_at`

func (r *PgVerificationRepository) RecordAttempt(ctx context.Context, attempt domain.VerificationAttempt, promote bool) error {
	const query = `
		INSERT INTO verification_attempts (
			id, user_id, document_front_url, document_back_url, selfie_url, similarity_score, liveness_score, status, provider, metadata, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	metadata := string(attempt.Metadata)
	if metadata == "" {
		metadata = "{}"
	}

	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, query,
			attempt.ID,
			attempt.UserID,
			attempt.DocumentFrontURL,
			attempt.DocumentBackURL,
			attempt.SelfieURL,
			attempt.SimilarityScore,
			attempt.LivenessScore,
			string(attempt.Status),
			attempt.Provider,
			metadata,
			attempt.CreatedAt,
			attempt.UpdatedAt,
		); err != nil {
			return fmt.Errorf("insert attempt: %w", err)
		}
		if !promote {
			return nil
		}
		if err := promoteUser(ctx, tx, attempt.UserID, attempt.UpdatedAt); err != nil {
			return fmt.Errorf("promote user: %w", err)
		}
		return nil
	})
}

func (r *PgVerificationRepository) GetByID(ctx context.Context, id string) (domain.VerificationAttempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM verification_attempts WHERE id = $1`
	return scanAttempt(r.pool.QueryRow(ctx, query, id))
}

func (r *PgVerificationRepository) ListByUserID(ctx context.Context, userID string) ([]domain.VerificationAttempt, error) {
	query := `
		SELECT ` + attemptColumns + `
		FROM verification_attempts
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []domain.VerificationAttempt
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, attempt)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return attempts, nil
}

func (r *PgVerificationRepository) Resolve(ctx context.Context, id string, status domain.VerificationStatus, reviewerID string, at time.Time) (domain.VerificationAttempt, error) {
	var resolved domain.VerificationAttempt
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		current, err := scanAttempt(tx.QueryRow(ctx, `SELECT `+attemptColumns+` FROM verification_attempts WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		if !current.Reviewable() {
			return ErrAttemptNotReviewable
		}

		const update = `
			UPDATE verification_attempts
			SET status = $2, reviewed_by = $3, reviewed_at = $4, updated_at = $4
			WHERE id = $1
		`
		if _, err := tx.Exec(ctx, update, id, string(status), reviewerID, at); err != nil {
			return fmt.Errorf("update attempt: %w", err)
		}
		if status == domain.VerificationApproved {
			if err := promoteUser(ctx, tx, current.UserID, at); err != nil {
				return fmt.Errorf("promote user: %w", err)
			}
		}

		current.Status = status
		current.ReviewedBy = &reviewerID
		current.ReviewedAt = &at
		current.UpdatedAt = at
		resolved = current
		return nil
	})
	if err != nil {
		return domain.VerificationAttempt{}, err
	}
	return resolved, nil
}

func scanAttempt(row pgx.Row) (domain.VerificationAttempt, error) {
	var (
		a        domain.VerificationAttempt
		status   string
		metadata []byte
	)
	err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.DocumentFrontURL,
		&a.DocumentBackURL,
		&a.SelfieURL,
		&a.SimilarityScore,
		&a.LivenessScore,
		&status,
		&a.Provider,
		&metadata,
		&a.ReviewedBy,
		&a.ReviewedAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return domain.VerificationAttempt{}, err
	}
	a.Status = domain.VerificationStatus(status)
	a.Metadata = metadata
	return a, nil
}
