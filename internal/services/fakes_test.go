package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"mirror/internal/models"
	"mirror/internal/repository"
)

// ---- in-memory repositories ----

type fakeUsers struct {
	mu        sync.Mutex
	byID      map[string]*models.User
	err       error
	updateErr error
	calls     int
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byID: map[string]*models.User{}}
}

func (f *fakeUsers) Create(_ context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return f.err
	}
	for _, existing := range f.byID {
		if strings.EqualFold(existing.Email, u.Email) {
			return repository.ErrConflict
		}
	}
	cp := *u
	f.byID[u.ID] = &cp
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	for _, u := range f.byID {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUsers) UpdatePasswordHash(_ context.Context, userID string, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.updateErr != nil {
		return f.updateErr
	}
	u, ok := f.byID[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (f *fakeUsers) MarkEmailVerified(_ context.Context, userID string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	u, ok := f.byID[userID]
	if !ok || u.EmailVerified {
		return false, nil
	}
	u.EmailVerified = true
	u.EmailVerifiedAt = &at
	return true, nil
}

func (f *fakeUsers) add(t *testing.T, password string, verified bool) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	u := &models.User{
		ID:            uuid.NewString(),
		Email:         strings.ToLower(gofakeit.Email()),
		Name:          gofakeit.Name(),
		PasswordHash:  string(hash),
		Language:      "en",
		EmailVerified: verified,
		CreatedAt:     time.Now().UTC(),
	}
	f.byID[u.ID] = u
	return u
}

func (f *fakeUsers) get(id string) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byID[id]
}

// fakeResets writes the password through users so Consume behaves like the
// transaction in the real repository.
type fakeResets struct {
	mu    sync.Mutex
	rows  map[string]*models.PasswordResetToken
	users *fakeUsers
}

func newFakeResets(users *fakeUsers) *fakeResets {
	return &fakeResets{rows: map[string]*models.PasswordResetToken{}, users: users}
}

func (f *fakeResets) Create(_ context.Context, t *models.PasswordResetToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *t
	f.rows[t.ID] = &cp
	return nil
}

func (f *fakeResets) GetByTokenHash(_ context.Context, hash string) (*models.PasswordResetToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.TokenHash == hash {
			cp := *r
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeResets) Consume(ctx context.Context, tokenID, userID, hash string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[tokenID]
	if !ok || r.Used {
		return repository.ErrNotFound
	}
	if err := f.users.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return err
	}
	r.Used = true
	r.UsedAt = &at
	return nil
}

func (f *fakeResets) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, id)
	return nil
}

func (f *fakeResets) DeleteByUserID(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, r := range f.rows {
		if r.UserID == userID {
			delete(f.rows, id)
		}
	}
	return nil
}

func (f *fakeResets) DeleteSiblings(_ context.Context, userID, keepID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, r := range f.rows {
		if r.UserID == userID && id != keepID {
			delete(f.rows, id)
		}
	}
	return nil
}

func (f *fakeResets) forUser(userID string) []*models.PasswordResetToken {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.PasswordResetToken
	for _, r := range f.rows {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out
}

type fakeVerifications struct {
	mu   sync.Mutex
	rows map[string]*models.EmailVerificationToken
}

func newFakeVerifications() *fakeVerifications {
	return &fakeVerifications{rows: map[string]*models.EmailVerificationToken{}}
}

func (f *fakeVerifications) Create(_ context.Context, t *models.EmailVerificationToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *t
	f.rows[t.ID] = &cp
	return nil
}

func (f *fakeVerifications) GetByTokenHash(_ context.Context, hash string) (*models.EmailVerificationToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.TokenHash == hash {
			cp := *r
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeVerifications) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, id)
	return nil
}

func (f *fakeVerifications) DeleteByUserID(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, r := range f.rows {
		if r.UserID == userID {
			delete(f.rows, id)
		}
	}
	return nil
}

func (f *fakeVerifications) DeleteSiblings(_ context.Context, userID, keepID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, r := range f.rows {
		if r.UserID == userID && id != keepID {
			delete(f.rows, id)
		}
	}
	return nil
}

func (f *fakeVerifications) forUser(userID string) []*models.EmailVerificationToken {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.EmailVerificationToken
	for _, r := range f.rows {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out
}

// ---- mailer ----

type fakeMailer struct {
	mu   sync.Mutex
	sent []Email
	err  error
}

func (m *fakeMailer) Send(_ context.Context, msg Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

var tokenInLink = regexp.MustCompile(`token=([0-9a-f]{64})`)

// lastToken returns the raw token from the most recent email.
func (m *fakeMailer) lastToken(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent, "no email sent")
	match := tokenInLink.FindStringSubmatch(m.sent[len(m.sent)-1].Text)
	require.Len(t, match, 2, "no token in email body")
	return match[1]
}

var errBoom = errors.New("boom")

func testLogger() *zap.Logger {
	return zap.NewNop()
}
