package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"pampapro/internal/config"
	"pampapro/internal/db"
	"pampapro/internal/domain"
	"pampapro/internal/repository"
)

type seedUser struct {
	email     string
	firstName string
	lastName  string
	role      string
	verified  bool
}

var defaultUsers = []seedUser{
	{email: "admin@pampapro.com", firstName: "Romina", lastName: "Admin", role: domain.RoleAdmin, verified: true},
	{email: "prestador@pampapro.com", firstName: "María", lastName: "González", role: domain.RoleProvider},
	{email: "contratante@pampapro.com", firstName: "Juan", lastName: "Pérez", role: domain.RoleContractor},
}

// main aplica las migraciones y crea los usuarios de desarrollo si no existen.
func main() {
	password := flag.String("password", "123456", "password for the seeded users")
	flag.Parse()

	ctx := context.Background()
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := zap.NewExample()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool, logger); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	repo := repository.NewPgUserRepository(pool)
	for _, su := range defaultUsers {
		u, created, err := ensureUser(ctx, repo, su, string(hash))
		if err != nil {
			log.Fatalf("seed %s: %v", su.email, err)
		}
		logger.Info("seed user", zap.String("email", u.Email), zap.String("role", u.Role), zap.Bool("created", created))
	}
}

func ensureUser(ctx context.Context, repo repository.UserRepository, su seedUser, passwordHash string) (domain.User, bool, error) {
	u, err := repo.GetByEmail(ctx, su.email)
	if err == nil {
		return u, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, false, err
	}

	now := time.Now().UTC()
	u = domain.User{
		ID:           uuid.NewString(),
		Email:        su.email,
		PasswordHash: passwordHash,
		FirstName:    su.firstName,
		LastName:     su.lastName,
		Role:         su.role,
		Verified:     su.verified,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := repo.Create(ctx, u); err != nil {
		return domain.User{}, false, err
	}
	return u, true, nil
}
