package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"pampapro/internal/domain"
	"pampapro/internal/email"
	"pampapro/internal/events"
	"pampapro/internal/face"
	"pampapro/internal/repository"
	"pampapro/internal/storage"
)

type mockUserRepo struct {
	mu           sync.Mutex
	usersByID    map[string]domain.User
	usersByEmail map[string]string
	getErr       error
	createErr    error
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
	if m.createErr != nil {
		return m.createErr
	}
	m.usersByID[user.ID] = user
	m.usersByEmail[user.Email] = user.ID
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return domain.User{}, m.getErr
	}
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

// mockAttemptRepo imita la transacción: el intento y la promoción se aplican juntos o no se aplican.
type mockAttemptRepo struct {
	mu       sync.Mutex
	users    *mockUserRepo
	attempts map[string]domain.VerificationAttempt
	order    []string
	err      error
	promoted []string
}

func newMockAttemptRepo(users *mockUserRepo) *mockAttemptRepo {
	return &mockAttemptRepo{users: users, attempts: make(map[string]domain.VerificationAttempt)}
}

func (m *mockAttemptRepo) RecordAttempt(_ context.Context, attempt domain.VerificationAttempt, promote bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.attempts[attempt.ID] = attempt
	m.order = append(m.order, attempt.ID)
	if promote {
		m.promote(attempt.UserID, attempt.UpdatedAt)
	}
	return nil
}

func (m *mockAttemptRepo) promote(userID string, at time.Time) {
	m.users.mu.Lock()
	defer m.users.mu.Unlock()
	user := m.users.usersByID[userID]
	user.Verified = true
	user.FaceVerified = true
	user.UpdatedAt = at
	m.users.usersByID[userID] = user
	m.promoted = append(m.promoted, userID)
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
	for i := len(m.order) - 1; i >= 0; i-- {
		if a := m.attempts[m.order[i]]; a.UserID == userID {
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
	a.UpdatedAt = at
	m.attempts[id] = a
	if status == domain.VerificationApproved {
		m.promote(a.UserID, at)
	}
	return a, nil
}

type mockStore struct {
	mu      sync.Mutex
	puts    map[string][]byte
	types   map[string]string
	failKey string
}

func newMockStore() *mockStore {
	return &mockStore{puts: make(map[string][]byte), types: make(map[string]string)}
}

func (m *mockStore) Put(_ context.Context, key, contentType string, data []byte) (string, error) {
	if m.failKey != "" && strings.Contains(key, m.failKey) {
		return "", errors.New("disk full")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts[key] = data
	m.types[key] = contentType
	return "https://cdn.pampapro.test/" + key, nil
}

func (m *mockStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.puts)
}

type mockFaceProvider struct {
	mu           sync.Mutex
	name         string
	facesByURL   map[string][]face.DetectedFace
	detectErr    error
	confidence   float64
	compareErr   error
	detectCalls  int
	compareCalls int
}

func (m *mockFaceProvider) Name() string { return m.name }

func (m *mockFaceProvider) DetectFaces(_ context.Context, imageURL string, _ face.DetectOptions) ([]face.DetectedFace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detectCalls++
	if m.detectErr != nil {
		return nil, m.detectErr
	}
	for suffix, faces := range m.facesByURL {
		if strings.Contains(imageURL, suffix) {
			return faces, nil
		}
	}
	return nil, nil
}

func (m *mockFaceProvider) CompareFaces(_ context.Context, _, _ string) (face.Comparison, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.compareCalls++
	if m.compareErr != nil {
		return face.Comparison{}, m.compareErr
	}
	return face.Comparison{Confidence: m.confidence, IsIdentical: m.confidence > 0.5}, nil
}

type mockPublisher struct {
	mu     sync.Mutex
	events []events.VerificationCompleted
	err    error
}

func (m *mockPublisher) PublishVerificationCompleted(_ context.Context, evt events.VerificationCompleted) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
	return m.err
}

func (m *mockPublisher) Close() {}

type mockEmailSender struct {
	lastTo     string
	lastNotice email.VerificationNotice
	calls      int
	err        error
}

func (m *mockEmailSender) SendVerificationResult(_ context.Context, toEmail string, notice email.VerificationNotice) error {
	m.calls++
	m.lastTo = toEmail
	m.lastNotice = notice
	return m.err
}

type denyLimiter struct{}

func (denyLimiter) Allow(string) bool { return false }

var _ storage.Store = (*mockStore)(nil)
