package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"pampapro/internal/domain"
	"pampapro/internal/email"
	"pampapro/internal/events"
	"pampapro/internal/face"
	"pampapro/internal/repository"
	"pampapro/internal/storage"
)

var (
	ErrRateLimited     = errors.New("rate limited")
	ErrAttemptNotFound = errors.New("verification attempt not found")
	ErrInvalidDecision = errors.New("invalid review decision")
	ErrNotReviewable   = errors.New("verification attempt is not awaiting review")

	// ErrReviewerNotAllowed: el revisor no existe en la base o no es admin.
	ErrReviewerNotAllowed = errors.New("reviewer not allowed")
)

// Mensajes de siguiente paso devueltos al cliente.
const (
	NextStepApproved = "Verificación completada"
	NextStepReview   = "En revisión manual"
	NextStepRejected = "Verificación rechazada"
)

// Propósitos de cada imagen; forman parte de la clave de almacenamiento.
const (
	purposeDocumentFront = "documento_frontal"
	purposeDocumentBack  = "documento_reverso"
	purposeSelfie        = "selfie"
)

// ImageInput es una imagen recibida del cliente.
type ImageInput struct {
	Data        []byte
	ContentType string
}

// SubmitInput es un envío de verificación. DocumentBack es opcional.
type SubmitInput struct {
	UserID        string
	Provider      string
	DocumentFront ImageInput
	DocumentBack  *ImageInput
	Selfie        ImageInput
}

// Outcome es lo que se devuelve al cliente tras procesar un envío.
type Outcome struct {
	VerificationID string
	Approved       bool
	Similarity     float64
	Liveness       float64
	NextStep       string
}

// VerificationService orquesta el pipeline: almacenamiento, proveedor facial, decisión y persistencia.
type VerificationService struct {
	logger          *zap.Logger
	users           repository.UserRepository
	attempts        repository.VerificationRepository
	store           storage.Store
	providers       *face.Registry
	thresholds      face.Thresholds
	defaultProvider string
	limiter         RateLimiter
	publisher       events.Publisher
	emailSender     email.Sender

	now   func() time.Time
	newID func() string
}

func NewVerificationService(
	logger *zap.Logger,
	users repository.UserRepository,
	attempts repository.VerificationRepository,
	store storage.Store,
	providers *face.Registry,
	thresholds face.Thresholds,
	defaultProvider string,
	limiter RateLimiter,
	publisher events.Publisher,
	emailSender email.Sender,
) *VerificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = events.NewNoopPublisher()
	}
	return &VerificationService{
		logger:          logger,
		users:           users,
		attempts:        attempts,
		store:           store,
		providers:       providers,
		thresholds:      thresholds,
		defaultProvider: defaultProvider,
		limiter:         limiter,
		publisher:       publisher,
		emailSender:     emailSender,
		now:             func() time.Time { return time.Now().UTC() },
		newID:           uuid.NewString,
	}
}

// Run procesa un envío completo. Nunca produce el estado rejected: lo no aprobado queda en revisión.
func (s *VerificationService) Run(ctx context.Context, input SubmitInput) (Outcome, error) {
	if err := validateSubmission(input); err != nil {
		return Outcome{}, err
	}

	providerName := strings.TrimSpace(input.Provider)
	if providerName == "" {
		providerName = s.defaultProvider
	}
	provider, err := s.providers.Resolve(providerName)
	if err != nil {
		return Outcome{}, err
	}

	user, err := s.users.GetByID(ctx, input.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Outcome{}, ErrUserNotFound
		}
		return Outcome{}, fmt.Errorf("get user: %w", err)
	}

	if s.limiter != nil && !s.limiter.Allow(user.ID) {
		return Outcome{}, ErrRateLimited
	}

	attemptID := s.newID()
	urls, err := s.storeImages(ctx, user.ID, attemptID, input)
	if err != nil {
		return Outcome{}, err
	}

	verifier := face.NewVerifier(provider, s.thresholds, s.logger)
	result, err := verifier.Verify(ctx, urls.front, urls.selfie)
	if err != nil {
		s.logger.Warn("face verification failed",
			zap.String("verification_id", attemptID),
			zap.String("user_id", user.ID),
			zap.String("provider", provider.Name()),
			zap.Error(err),
		)
		return Outcome{}, fmt.Errorf("verify faces: %w", err)
	}

	status := domain.VerificationRevision
	if result.Approved {
		status = domain.VerificationApproved
	}
	metadata, err := json.Marshal(result.Metadata)
	if err != nil {
		return Outcome{}, fmt.Errorf("encode metadata: %w", err)
	}

	now := s.now()
	similarity := result.Similarity
	liveness := result.Liveness
	attempt := domain.VerificationAttempt{
		ID:               attemptID,
		UserID:           user.ID,
		DocumentFrontURL: urls.front,
		DocumentBackURL:  urls.back,
		SelfieURL:        urls.selfie,
		SimilarityScore:  &similarity,
		LivenessScore:    &liveness,
		Status:           status,
		Provider:         provider.Name(),
		Metadata:         metadata,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.attempts.RecordAttempt(ctx, attempt, result.Approved); err != nil {
		return Outcome{}, fmt.Errorf("record attempt: %w", err)
	}

	outcome := Outcome{
		VerificationID: attemptID,
		Approved:       result.Approved,
		Similarity:     result.Similarity,
		Liveness:       result.Liveness,
		NextStep:       nextStepFor(status),
	}
	s.logger.Info("verification processed",
		zap.String("verification_id", attemptID),
		zap.String("user_id", user.ID),
		zap.String("status", string(status)),
		zap.Float64("similarity", result.Similarity),
	)

	s.notify(ctx, user, attempt)
	return outcome, nil
}

// Get devuelve un intento por id.
func (s *VerificationService) Get(ctx context.Context, id string) (domain.VerificationAttempt, error) {
	attempt, err := s.attempts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.VerificationAttempt{}, ErrAttemptNotFound
		}
		return domain.VerificationAttempt{}, err
	}
	return attempt, nil
}

// ListByUser devuelve los intentos del usuario, del más reciente al más antiguo.
func (s *VerificationService) ListByUser(ctx context.Context, userID string) ([]domain.VerificationAttempt, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	attempts, err := s.attempts.ListByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if attempts == nil {
		attempts = []domain.VerificationAttempt{}
	}
	return attempts, nil
}

// Review resuelve manualmente un intento en revisión. Aprobar promueve al usuario.
func (s *VerificationService) Review(ctx context.Context, id, decision, reviewerID string) (domain.VerificationAttempt, error) {
	var status domain.VerificationStatus
	switch strings.ToLower(strings.TrimSpace(decision)) {
	case string(domain.VerificationApproved):
		status = domain.VerificationApproved
	case string(domain.VerificationRejected):
		status = domain.VerificationRejected
	default:
		return domain.VerificationAttempt{}, ErrInvalidDecision
	}

	reviewer, err := s.users.GetByID(ctx, reviewerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.VerificationAttempt{}, ErrReviewerNotAllowed
		}
		return domain.VerificationAttempt{}, fmt.Errorf("get reviewer: %w", err)
	}
	if reviewer.Role != domain.RoleAdmin {
		return domain.VerificationAttempt{}, ErrReviewerNotAllowed
	}

	attempt, err := s.attempts.Resolve(ctx, id, status, reviewerID, s.now())
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return domain.VerificationAttempt{}, ErrAttemptNotFound
		case errors.Is(err, repository.ErrAttemptNotReviewable):
			return domain.VerificationAttempt{}, ErrNotReviewable
		}
		return domain.VerificationAttempt{}, fmt.Errorf("resolve attempt: %w", err)
	}

	s.logger.Info("verification reviewed",
		zap.String("verification_id", attempt.ID),
		zap.String("reviewer_id", reviewerID),
		zap.String("status", string(status)),
	)

	user, err := s.users.GetByID(ctx, attempt.UserID)
	if err != nil {
		s.logger.Warn("load user for review notification failed", zap.String("user_id", attempt.UserID), zap.Error(err))
		return attempt, nil
	}
	s.notify(ctx, user, attempt)
	return attempt, nil
}

type storedImages struct {
	front  string
	back   *string
	selfie string
}

// storeImages sube las imágenes en paralelo. Cualquier falla cancela el resto.
func (s *VerificationService) storeImages(ctx context.Context, userID, attemptID string, input SubmitInput) (storedImages, error) {
	var out storedImages
	var backURL string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		url, err := s.putImage(gctx, userID, attemptID, purposeDocumentFront, input.DocumentFront)
		out.front = url
		return err
	})
	g.Go(func() error {
		url, err := s.putImage(gctx, userID, attemptID, purposeSelfie, input.Selfie)
		out.selfie = url
		return err
	})
	if input.DocumentBack != nil {
		g.Go(func() error {
			url, err := s.putImage(gctx, userID, attemptID, purposeDocumentBack, *input.DocumentBack)
			backURL = url
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return storedImages{}, err
	}
	if input.DocumentBack != nil {
		out.back = &backURL
	}
	return out, nil
}

func (s *VerificationService) putImage(ctx context.Context, userID, attemptID, purpose string, img ImageInput) (string, error) {
	key := fmt.Sprintf("verifications/%s/%s/%s%s", userID, attemptID, purpose, storage.ExtensionFor(img.ContentType))
	url, err := s.store.Put(ctx, key, img.ContentType, img.Data)
	if err != nil {
		if errors.Is(err, storage.ErrStorage) {
			return "", fmt.Errorf("store %s: %w", purpose, err)
		}
		return "", fmt.Errorf("%w: store %s: %v", storage.ErrStorage, purpose, err)
	}
	return url, nil
}

// notify publica el evento y envía el correo. Ninguna falla afecta el resultado.
func (s *VerificationService) notify(ctx context.Context, user domain.User, attempt domain.VerificationAttempt) {
	evt := events.VerificationCompleted{
		VerificationID: attempt.ID,
		UserID:         user.ID,
		Status:         string(attempt.Status),
		Approved:       attempt.Status == domain.VerificationApproved,
		Provider:       attempt.Provider,
		OccurredAt:     attempt.UpdatedAt,
	}
	if attempt.SimilarityScore != nil {
		evt.Similarity = *attempt.SimilarityScore
	}
	if attempt.LivenessScore != nil {
		evt.Liveness = *attempt.LivenessScore
	}
	if err := s.publisher.PublishVerificationCompleted(ctx, evt); err != nil {
		s.logger.Warn("publish verification event failed", zap.String("verification_id", attempt.ID), zap.Error(err))
	}

	if s.emailSender == nil {
		return
	}
	notice := email.VerificationNotice{
		FirstName:      user.FirstName,
		VerificationID: attempt.ID,
		Status:         string(attempt.Status),
		NextStep:       nextStepFor(attempt.Status),
	}
	if err := s.emailSender.SendVerificationResult(ctx, user.Email, notice); err != nil {
		if errors.Is(err, email.ErrSenderDisabled) {
			s.logger.Debug("verification email skipped", zap.String("verification_id", attempt.ID), zap.Error(err))
			return
		}
		s.logger.Warn("send verification email failed", zap.String("verification_id", attempt.ID), zap.Error(err))
	}
}

func nextStepFor(status domain.VerificationStatus) string {
	switch status {
	case domain.VerificationApproved:
		return NextStepApproved
	case domain.VerificationRejected:
		return NextStepRejected
	default:
		return NextStepReview
	}
}

func validateSubmission(input SubmitInput) error {
	var fields []FieldError
	if strings.TrimSpace(input.UserID) == "" {
		fields = append(fields, FieldError{Field: "userId", Message: "userId es obligatorio"})
	}
	if len(input.DocumentFront.Data) == 0 {
		fields = append(fields, FieldError{Field: "documentoFrontal", Message: "documentoFrontal es obligatorio"})
	}
	if len(input.Selfie.Data) == 0 {
		fields = append(fields, FieldError{Field: "selfie", Message: "selfie es obligatoria"})
	}
	if input.DocumentBack != nil && len(input.DocumentBack.Data) == 0 {
		fields = append(fields, FieldError{Field: "documentoReverso", Message: "documentoReverso está vacío"})
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
