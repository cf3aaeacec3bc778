package routes

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"go.uber.org/zap"
	"mirror/internal/config"
	"mirror/internal/middleware"
	"mirror/internal/models"
	"mirror/internal/ratelimit"
	"mirror/internal/services"
)

type healthResp struct {
	Status string `json:"status"`
	DB     struct {
		Status string `json:"status"`
		Error  string `json:"error,omitempty"`
	} `json:"db"`
}

type nopMailer struct{}

func (nopMailer) Send(context.Context, services.Email) error { return nil }

func testDeps(db *sql.DB) Deps {
	return Deps{
		DB: db,
		Cfg: &config.Config{
			Environment:       "production",
			AppURL:            "https://app.test",
			JWTSecret:         "dev",
			JWTTTL:            time.Hour,
			ResetTokenTTL:     time.Hour,
			AdminSecret:       "s3cret",
			AdminAPIURL:       "http://localhost:0",
			RateLimitRequests: 2,
			RateLimitWindow:   15 * time.Minute,
		},
		Log:     zap.NewNop(),
		Limiter: ratelimit.NewMemoryLimiter(),
		Mailer:  nopMailer{},
	}
}

func TestRootReturnsJSON(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	r := SetupRoutes(testDeps(db))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected application/json, got %q", ct)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if body["message"] == "" {
		t.Fatalf("expected message, got %v", body)
	}
}

func TestHealthDBOK(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	mock.ExpectPing()

	r := SetupRoutes(testDeps(db))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp healthResp
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Status != "ok" || resp.DB.Status != "ok" {
		t.Fatalf("unexpected body %+v", resp)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestHealthDBDown(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	r := SetupRoutes(testDeps(db))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	var resp healthResp
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.DB.Status != "error" || resp.DB.Error == "" {
		t.Fatalf("unexpected body %+v", resp)
	}
}

func TestForgotPasswordIsRateLimited(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	for i := 0; i < 2; i++ {
		mock.ExpectQuery(`SELECT .* FROM users WHERE LOWER\(email\) = LOWER\(\$1\)`).
			WithArgs("ghost@example.com").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
	}

	r := SetupRoutes(testDeps(db))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/forgot-password",
			bytes.NewBufferString(`{"email":"ghost@example.com"}`))
		req.RemoteAddr = "203.0.113.9:5555"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)

		if i == 2 && w.Header().Get("Retry-After") == "" {
			t.Fatalf("expected Retry-After on 429")
		}
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status sequence %v", codes)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAdminRoutesRequireSecret(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	r := SetupRoutes(testDeps(db))

	req := httptest.NewRequest(http.MethodGet, "/api/admin/registrations", nil)
	req.Header.Set(middleware.AdminSecretHeader, "wrong")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestUsersMeRequiresToken(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	r := SetupRoutes(testDeps(db))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/users/me", nil))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestSwaggerHiddenInProduction(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	r := SetupRoutes(testDeps(db))

	for _, path := range []string{"/swagger", "/swagger/index.html", "/swagger/doc.json"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", path, w.Code)
		}
	}
}

func TestSwaggerRedirect(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	cases := []struct {
		name string
		cfg  func(*config.Config)
	}{
		{"development", func(c *config.Config) { c.Environment = "development" }},
		{"enabled in production", func(c *config.Config) { c.SwaggerEnabled = true }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := testDeps(db)
			tc.cfg(d.Cfg)
			r := SetupRoutes(d)

			for _, path := range []string{"/swagger", "/swagger/"} {
				w := httptest.NewRecorder()
				r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
				if w.Code != http.StatusMovedPermanently || w.Header().Get("Location") != "/swagger/index.html" {
					t.Fatalf("%s: unexpected redirect %d %q", path, w.Code, w.Header().Get("Location"))
				}
			}
		})
	}
}

func TestSendVerificationByUserIDNeedsSession(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	d := testDeps(db)
	r := SetupRoutes(d)

	send := func(token string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/send-verification",
			bytes.NewBufferString(`{"userId":"u1"}`))
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	if code := send(""); code != http.StatusUnauthorized {
		t.Fatalf("anonymous: expected 401, got %d", code)
	}

	accounts := services.NewAccountService(nil, nil, zap.NewNop(), d.Cfg.JWTSecret, d.Cfg.JWTTTL)
	other, err := accounts.IssueToken(&models.User{ID: "u2", Email: "other@example.com"})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if code := send(other); code != http.StatusForbidden {
		t.Fatalf("other user: expected 403, got %d", code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
