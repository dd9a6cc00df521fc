package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"pampapro/internal/domain"
	"pampapro/internal/repository"
)

// UserService coordina reglas de negocio para usuarios.
type UserService struct {
	logger *zap.Logger
	users  repository.UserRepository
}

func NewUserService(logger *zap.Logger, users repository.UserRepository) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		logger: logger,
		users:  users,
	}
}

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
	ErrInvalidInput = errors.New("invalid input")
)

// Mensajes de siguiente paso devueltos tras el registro.
const (
	NextStepsProvider = "Complete su verificación como prestador"
	NextStepsDefault  = "¡Registro completado!"
)

const (
	minNameLength     = 2
	minPasswordLength = 6
)

// FieldError describe un campo inválido.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError agrupa los campos inválidos de una solicitud. Coincide con ErrInvalidInput.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

type RegisterInput struct {
	FirstName       string
	LastName        string
	Email           string
	Phone           string
	Role            string
	Password        string
	ConfirmPassword string
}

// GetByID busca un usuario; ErrUserNotFound si no existe.
func (s *UserService) GetByID(ctx context.Context, id string) (domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// Register valida los datos, guarda el hash de la contraseña y crea un usuario sin verificar.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (domain.User, error) {
	if s.users == nil {
		return domain.User{}, errors.New("user service not configured")
	}

	input.FirstName = strings.TrimSpace(input.FirstName)
	input.LastName = strings.TrimSpace(input.LastName)
	input.Email = normalizeEmail(input.Email)
	input.Phone = strings.TrimSpace(input.Phone)
	input.Role = strings.ToLower(strings.TrimSpace(input.Role))

	if err := validateRegistration(input); err != nil {
		return domain.User{}, err
	}

	_, err := s.users.GetByEmail(ctx, input.Email)
	if err == nil {
		return domain.User{}, ErrEmailTaken
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, fmt.Errorf("lookup email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, err
	}

	now := time.Now().UTC()
	user := domain.User{
		ID:           uuid.NewString(),
		Email:        input.Email,
		PasswordHash: string(hash),
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Role:         input.Role,
		Phone:        input.Phone,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return domain.User{}, err
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID), zap.String("role", user.Role))
	return user, nil
}

// NextStepsFor devuelve el mensaje que se muestra después del registro.
func NextStepsFor(role string) string {
	if role == domain.RoleProvider {
		return NextStepsProvider
	}
	return NextStepsDefault
}

func validateRegistration(input RegisterInput) error {
	var fields []FieldError
	if utf8.RuneCountInString(input.FirstName) < minNameLength {
		fields = append(fields, FieldError{Field: "nombre", Message: "Nombre muy corto"})
	}
	if utf8.RuneCountInString(input.LastName) < minNameLength {
		fields = append(fields, FieldError{Field: "apellido", Message: "Apellido muy corto"})
	}
	if !isValidEmail(input.Email) {
		fields = append(fields, FieldError{Field: "email", Message: "Email inválido"})
	}
	if input.Role != domain.RoleProvider && input.Role != domain.RoleContractor {
		fields = append(fields, FieldError{Field: "rol", Message: "Rol inválido"})
	}
	if utf8.RuneCountInString(input.Password) < minPasswordLength {
		fields = append(fields, FieldError{Field: "password", Message: "La contraseña debe tener al menos 6 caracteres"})
	}
	if input.Password != input.ConfirmPassword {
		fields = append(fields, FieldError{Field: "confirmPassword", Message: "Las contraseñas no coinciden"})
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func isValidEmail(email string) bool {
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
