package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"go.uber.org/zap"
	"mirror/internal/config"
	"mirror/internal/repository"
	"mirror/internal/services"
)

type captureMailer struct {
	mu   sync.Mutex
	sent []services.Email
}

func (m *captureMailer) Send(_ context.Context, msg services.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

type testEnv struct {
	db     *sql.DB
	mock   sqlmock.Sqlmock
	mailer *captureMailer
	cfg    *config.Config

	auth   *AuthHandler
	verify *VerificationHandler
	users  *UserHandler
	admin  *AdminHandler
}

func testConfig() *config.Config {
	return &config.Config{
		Environment:          "production",
		AppURL:               "https://app.test",
		JWTSecret:            "dev",
		JWTTTL:               time.Hour,
		ResetTokenTTL:        time.Hour,
		VerificationTokenTTL: 24 * time.Hour,
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := testConfig()
	log := zap.NewNop()
	mailer := &captureMailer{}

	users := repository.NewUserRepository(db)
	verifications := services.NewEmailVerificationService(users, repository.NewEmailVerificationRepository(db), mailer, log, cfg.AppURL, cfg.VerificationTokenTTL)
	resets := services.NewPasswordResetService(users, repository.NewPasswordResetRepository(db), mailer, log, cfg.AppURL, cfg.ResetTokenTTL)
	accounts := services.NewAccountService(users, verifications, log, cfg.JWTSecret, cfg.JWTTTL)

	base := NewBaseHandler(cfg, log)
	return &testEnv{
		db:     db,
		mock:   mock,
		mailer: mailer,
		cfg:    cfg,
		auth:   NewAuthHandler(base, accounts, resets),
		verify: NewVerificationHandler(base, verifications),
		users:  NewUserHandler(base, accounts),
		admin:  NewAdminHandler(base, repository.NewRegistrationRepository(db)),
	}
}

func (e *testEnv) done(t *testing.T) {
	t.Helper()
	if err := e.mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func post(t *testing.T, h http.HandlerFunc, path string, payload any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	b, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	w := httptest.NewRecorder()
	h(w, req)

	var resp map[string]any
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("invalid json %q: %v", w.Body.String(), err)
		}
	}
	return w, resp
}

var userCols = []string{"id", "email", "name", "password_hash", "language", "email_verified", "email_verified_at", "created_at"}

func userRow(id, email string, verified bool) *sqlmock.Rows {
	return sqlmock.NewRows(userCols).AddRow(id, email, "Dana", "$2a$10$hash", "en", verified, nil, time.Now().UTC())
}

var resetCols = []string{"id", "user_id", "token_hash", "expires_at", "used", "used_at", "created_at"}

const (
	selectUserByEmail = `SELECT .* FROM users WHERE LOWER\(email\) = LOWER\(\$1\)`
	selectUserByID    = `SELECT .* FROM users WHERE id = \$1`
	selectResetToken  = `SELECT .* FROM password_reset_tokens WHERE token_hash = \$1`
	selectVerifyToken = `SELECT .* FROM email_verification_tokens WHERE token_hash = \$1`
)
