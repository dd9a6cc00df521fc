//go:build integration

package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"pampapro/internal/config"
	"pampapro/internal/db"
	"pampapro/internal/domain"
)

func setupPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "pampapro",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil || container == nil {
		t.Skipf("docker not available, skipping integration test: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("container port: %v", err)
	}

	cfg := &config.Config{
		DatabaseURL: fmt.Sprintf("postgres://test:test@%s:%s/pampapro?sslmode=disable", host, port.Port()),
	}
	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := db.Migrate(ctx, pool, zap.NewNop()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return pool
}

func seedUser(t *testing.T, repo *PgUserRepository, email string) domain.User {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	user := domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: "hash",
		FirstName:    "Juan",
		LastName:     "Pérez",
		Role:         domain.RoleProvider,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func TestVerificationRepository(t *testing.T) {
	pool := setupPostgres(t)
	ctx := context.Background()
	users := NewPgUserRepository(pool)
	attempts := NewPgVerificationRepository(pool)

	t.Run("revision attempt leaves user untouched", func(t *testing.T) {
		user := seedUser(t, users, "revision@pampapro.com")
		now := time.Now().UTC().Truncate(time.Microsecond)
		similarity := 0.42
		attempt := domain.VerificationAttempt{
			ID:               uuid.NewString(),
			UserID:           user.ID,
			DocumentFrontURL: "http://localhost/uploads/front.jpg",
			SelfieURL:        "http://localhost/uploads/selfie.jpg",
			SimilarityScore:  &similarity,
			Status:           domain.VerificationRevision,
			Provider:         "azure",
			Metadata:         []byte(`{"verification":{"confidence":0.42}}`),
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := attempts.RecordAttempt(ctx, attempt, false); err != nil {
			t.Fatalf("record attempt: %v", err)
		}

		got, err := users.GetByID(ctx, user.ID)
		if err != nil {
			t.Fatalf("get user: %v", err)
		}
		if got.Verified || got.FaceVerified {
			t.Fatalf("expected user not promoted, got %+v", got)
		}

		stored, err := attempts.GetByID(ctx, attempt.ID)
		if err != nil {
			t.Fatalf("get attempt: %v", err)
		}
		if stored.Status != domain.VerificationRevision {
			t.Fatalf("expected revision, got %s", stored.Status)
		}
		if stored.DocumentBackURL != nil {
			t.Fatalf("expected nil back url, got %v", *stored.DocumentBackURL)
		}
		if stored.SimilarityScore == nil || *stored.SimilarityScore != 0.42 {
			t.Fatalf("unexpected similarity: %v", stored.SimilarityScore)
		}
	})

	t.Run("approved attempt promotes user", func(t *testing.T) {
		user := seedUser(t, users, "approved@pampapro.com")
		now := time.Now().UTC().Truncate(time.Microsecond)
		attempt := domain.VerificationAttempt{
			ID:               uuid.NewString(),
			UserID:           user.ID,
			DocumentFrontURL: "front",
			SelfieURL:        "selfie",
			Status:           domain.VerificationApproved,
			Provider:         "azure",
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := attempts.RecordAttempt(ctx, attempt, true); err != nil {
			t.Fatalf("record attempt: %v", err)
		}
		got, err := users.GetByID(ctx, user.ID)
		if err != nil {
			t.Fatalf("get user: %v", err)
		}
		if !got.Verified || !got.FaceVerified {
			t.Fatalf("expected user promoted, got %+v", got)
		}
		if got.FirstName != "Juan" || got.Email != "approved@pampapro.com" {
			t.Fatalf("expected other columns untouched, got %+v", got)
		}
	})

	t.Run("promotion of missing user rolls back the attempt", func(t *testing.T) {
		now := time.Now().UTC()
		attempt := domain.VerificationAttempt{
			ID:               uuid.NewString(),
			UserID:           uuid.NewString(),
			DocumentFrontURL: "front",
			SelfieURL:        "selfie",
			Status:           domain.VerificationApproved,
			Provider:         "azure",
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := attempts.RecordAttempt(ctx, attempt, true); err == nil {
			t.Fatalf("expected error for unknown user")
		}
		if _, err := attempts.GetByID(ctx, attempt.ID); !errors.Is(err, pgx.ErrNoRows) {
			t.Fatalf("expected no attempt row, got %v", err)
		}
	})

	t.Run("list newest first and manual review", func(t *testing.T) {
		user := seedUser(t, users, "review@pampapro.com")
		admin := seedUser(t, users, "admin-review@pampapro.com")
		base := time.Now().UTC().Truncate(time.Microsecond)
		ids := []string{uuid.NewString(), uuid.NewString()}
		for i, id := range ids {
			at := base.Add(time.Duration(i) * time.Minute)
			err := attempts.RecordAttempt(ctx, domain.VerificationAttempt{
				ID:               id,
				UserID:           user.ID,
				DocumentFrontURL: "front",
				SelfieURL:        "selfie",
				Status:           domain.VerificationRevision,
				Provider:         "azure",
				CreatedAt:        at,
				UpdatedAt:        at,
			}, false)
			if err != nil {
				t.Fatalf("record attempt: %v", err)
			}
		}

		list, err := attempts.ListByUserID(ctx, user.ID)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(list) != 2 || list[0].ID != ids[1] {
			t.Fatalf("expected newest first, got %+v", list)
		}

		resolved, err := attempts.Resolve(ctx, ids[0], domain.VerificationApproved, admin.ID, base.Add(time.Hour))
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if resolved.Status != domain.VerificationApproved || resolved.ReviewedBy == nil || *resolved.ReviewedBy != admin.ID {
			t.Fatalf("unexpected resolved attempt: %+v", resolved)
		}
		got, err := users.GetByID(ctx, user.ID)
		if err != nil {
			t.Fatalf("get user: %v", err)
		}
		if !got.FaceVerified {
			t.Fatalf("expected user promoted after manual approval")
		}

		if _, err := attempts.Resolve(ctx, ids[0], domain.VerificationRejected, admin.ID, base); !errors.Is(err, ErrAttemptNotReviewable) {
			t.Fatalf("expected ErrAttemptNotReviewable, got %v", err)
		}
	})
}

func TestUploadRepositoryCreate(t *testing.T) {
	pool := setupPostgres(t)
	ctx := context.Background()
	user := seedUser(t, NewPgUserRepository(pool), "upload@pampapro.com")

	err := NewPgUploadRepository(pool).Create(ctx, domain.Upload{
		ID:           uuid.NewString(),
		UserID:       user.ID,
		FileName:     "abc123.jpg",
		OriginalName: "foto.jpg",
		FileType:     "image/jpeg",
		FileSize:     1024,
		URL:          "http://localhost:8080/uploads/abc123.jpg",
		Kind:         "imagen",
		UploadedAt:   time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create upload: %v", err)
	}
}
