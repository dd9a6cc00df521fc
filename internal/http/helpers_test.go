package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"pampapro/internal/domain"
	"pampapro/internal/face"
	"pampapro/internal/repository"
	"pampapro/internal/service"
)

const testSecret = "secret"

// Cabeceras mínimas para que la detección por contenido reconozca el formato.
var (
	jpegBytes = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0x01}
	pngBytes  = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n', 0x00, 0x00, 0x00, 0x0D, 'I', 'H', 'D', 'R'}
)

type mockUserRepo struct {
	mu           sync.Mutex
	usersByID    map[string]domain.User
	usersByEmail map[string]string
}

func newMockUserRepo(users ...domain.User) *mockUserRepo {
	m := &mockUserRepo{
		usersByID:    make(map[string]domain.User),
		usersByEmail: make(map[string]string),
	}
	for _, u := range users {
		m.usersByID[u.ID] = u
		m.usersByEmail[u.Email] = u.ID
	}
	return m
}

func (m *mockUserRepo) Create(_ context.Context, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usersByID[user.ID] = user
	m.usersByEmail[user.Email] = user.ID
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.usersByID[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return user, nil
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	m.mu.Lock()
	id, ok := m.usersByEmail[email]
	m.mu.Unlock()
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return m.GetByID(ctx, id)
}

type mockAttemptRepo struct {
	mu       sync.Mutex
	attempts map[string]domain.VerificationAttempt
}

func newMockAttemptRepo(attempts ...domain.VerificationAttempt) *mockAttemptRepo {
	m := &mockAttemptRepo{attempts: make(map[string]domain.VerificationAttempt)}
	for _, a := range attempts {
		m.attempts[a.ID] = a
	}
	return m
}

func (m *mockAttemptRepo) RecordAttempt(_ context.Context, attempt domain.VerificationAttempt, _ bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts[attempt.ID] = attempt
	return nil
}

func (m *mockAttemptRepo) GetByID(_ context.Context, id string) (domain.VerificationAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[id]
	if !ok {
		return domain.VerificationAttempt{}, pgx.ErrNoRows
	}
	return a, nil
}

func (m *mockAttemptRepo) ListByUserID(_ context.Context, userID string) ([]domain.VerificationAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.VerificationAttempt
	for _, a := range m.attempts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockAttemptRepo) Resolve(_ context.Context, id string, status domain.VerificationStatus, reviewerID string, at time.Time) (domain.VerificationAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[id]
	if !ok {
		return domain.VerificationAttempt{}, pgx.ErrNoRows
	}
	if !a.Reviewable() {
		return domain.VerificationAttempt{}, repository.ErrAttemptNotReviewable
	}
	a.Status = status
	a.ReviewedBy = &reviewerID
	a.ReviewedAt = &at
	m.attempts[id] = a
	return a, nil
}

type mockStore struct {
	mu    sync.Mutex
	types map[string]string
	err   error
}

func newMockStore() *mockStore {
	return &mockStore{types: make(map[string]string)}
}

func (m *mockStore) Put(_ context.Context, key, contentType string, _ []byte) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.types[key] = contentType
	return "http://localhost:8080/uploads/" + key, nil
}

type mockFaceProvider struct {
	confidence float64
	quality    string
	noFace     bool
	compareErr error
}

func (m *mockFaceProvider) Name() string { return "azure" }

func (m *mockFaceProvider) DetectFaces(_ context.Context, imageURL string, opts face.DetectOptions) ([]face.DetectedFace, error) {
	if m.noFace {
		return nil, nil
	}
	detected := face.DetectedFace{FaceID: "face-" + imageURL}
	if opts.WithAttributes {
		detected.Attributes = &face.Attributes{
			QualityForRecognition: m.quality,
			Blur:                  &face.Blur{BlurLevel: "low"},
		}
	}
	return []face.DetectedFace{detected}, nil
}

func (m *mockFaceProvider) CompareFaces(_ context.Context, _, _ string) (face.Comparison, error) {
	if m.compareErr != nil {
		return face.Comparison{}, m.compareErr
	}
	return face.Comparison{Confidence: m.confidence}, nil
}

type mockUploadRepo struct {
	uploads []domain.Upload
}

func (m *mockUploadRepo) Create(_ context.Context, upload domain.Upload) error {
	m.uploads = append(m.uploads, upload)
	return nil
}

type mockPinger struct {
	err error
}

func (m mockPinger) Ping(context.Context) error { return m.err }

type routerFixture struct {
	users    *mockUserRepo
	attempts *mockAttemptRepo
	store    *mockStore
	provider *mockFaceProvider
	uploads  *mockUploadRepo
	router   *gin.Engine
}

func newRouterFixture(t *testing.T, pingErr error) *routerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &routerFixture{
		users: newMockUserRepo(
			domain.User{ID: "u1", Email: "juan@example.com", FirstName: "Juan", Role: domain.RoleProvider},
			domain.User{ID: "u2", Email: "ana@example.com", FirstName: "Ana", Role: domain.RoleContractor},
			domain.User{ID: "admin-1", Email: "admin@pampapro.com", FirstName: "Admin", Role: domain.RoleAdmin},
		),
		attempts: newMockAttemptRepo(),
		store:    newMockStore(),
		provider: &mockFaceProvider{confidence: 0.91, quality: "high"},
		uploads:  &mockUploadRepo{},
	}

	logger := zap.NewNop()
	userSvc := service.NewUserService(logger, f.users)
	verificationSvc := service.NewVerificationService(
		logger,
		f.users,
		f.attempts,
		f.store,
		face.NewRegistry(f.provider),
		face.DefaultThresholds(),
		"azure",
		nil,
		nil,
		nil,
	)
	f.router = NewRouter(RouterDeps{
		Logger:        logger,
		TokenVerifier: service.NewTokenVerifier(testSecret, "pampapro"),
		CurrentUsers:  userSvc,
		Users:         NewUserHandler(logger, userSvc),
		Verifications: NewVerificationHandler(logger, verificationSvc),
		Uploads:       NewUploadHandler(logger, service.NewUploadService(logger, f.store, f.uploads)),
		Health:        NewHealthHandler(logger, mockPinger{err: pingErr}),
	})
	return f
}

func performRequest(r http.Handler, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

type formFile struct {
	field       string
	filename    string
	contentType string
	data        []byte
}

func performMultipart(t *testing.T, r http.Handler, path string, fields map[string]string, files []formFile, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+f.field+`"; filename="`+f.filename+`"`)
		if f.contentType != "" {
			h.Set("Content-Type", f.contentType)
		}
		part, err := w.CreatePart(h)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		if _, err := part.Write(f.data); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

// bearer firma un token de sesión con la misma forma que emite la aplicación web.
func bearer(t *testing.T, userID string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"userId": userID,
		"exp":    time.Now().Add(time.Hour).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return "Bearer " + signed
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", strings.TrimSpace(rec.Body.String()), err)
	}
	return body
}
