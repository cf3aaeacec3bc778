package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"mirror/internal/models"
	"mirror/internal/repository"
)

const defaultLanguage = "en"

// Verifier is the part of EmailVerificationService that signup needs.
type Verifier interface {
	SendToUser(ctx context.Context, userID string) (VerificationResult, error)
}

type AccountService struct {
	users     repository.UserRepository
	verifier  Verifier
	log       *zap.Logger
	jwtSecret []byte
	jwtTTL    time.Duration
	now       func() time.Time
}

func NewAccountService(
	users repository.UserRepository,
	verifier Verifier,
	log *zap.Logger,
	jwtSecret string,
	jwtTTL time.Duration,
) *AccountService {
	return &AccountService{
		users:     users,
		verifier:  verifier,
		log:       log,
		jwtSecret: []byte(jwtSecret),
		jwtTTL:    jwtTTL,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Signup creates the account and returns it with a session token. The
// verification email is best effort.
func (s *AccountService) Signup(ctx context.Context, req models.SignupRequest) (*models.User, string, error) {
	const op = "services.Account.Signup"
	log := s.log.With(zap.String("op", op))

	if err := ValidatePassword(req.Password); err != nil {
		return nil, "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}

	lang := req.Language
	if lang == "" {
		lang = defaultLanguage
	}

	u := &models.User{
		ID:           uuid.NewString(),
		Email:        NormalizeEmail(req.Email),
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: string(hash),
		Language:     lang,
		CreatedAt:    s.now(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, "", fmt.Errorf("%s: %w", op, ErrEmailTaken)
		}
		log.Error("failed to create user", zap.Error(err))
		return nil, "", fmt.Errorf("%s: %w: %w", op, ErrStore, err)
	}
	log = log.With(zap.String("user_id", u.ID))

	token, err := s.IssueToken(u)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}

	if s.verifier != nil {
		if _, err := s.verifier.SendToUser(ctx, u.ID); err != nil {
			log.Warn("signup verification email not sent", zap.Error(err))
		}
	}

	log.Info("user signed up")
	return u, token, nil
}

func (s *AccountService) Signin(ctx context.Context, email, password string) (*models.User, string, error) {
	const op = "services.Account.Signin"

	u, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}
		return nil, "", fmt.Errorf("%s: %w: %w", op, ErrStore, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	token, err := s.IssueToken(u)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}
	return u, token, nil
}

func (s *AccountService) Me(ctx context.Context, userID string) (*models.User, error) {
	const op = "services.Account.Me"

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		return nil, fmt.Errorf("%s: %w: %w", op, ErrStore, err)
	}
	return u, nil
}

// ChangePassword replaces the password of a signed in user after checking the
// current one.
func (s *AccountService) ChangePassword(ctx context.Context, userID, current, next string) error {
	const op = "services.Account.ChangePassword"

	if err := ValidatePassword(next); err != nil {
		return err
	}

	u, err := s.Me(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(current)); err != nil {
		return fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.users.UpdatePasswordHash(ctx, u.ID, string(hash)); err != nil {
		s.log.Error("failed to update password", zap.String("op", op), zap.Error(err))
		return fmt.Errorf("%s: %w: %w", op, ErrStore, err)
	}
	return nil
}

// IssueToken signs an HS256 session token for u.
func (s *AccountService) IssueToken(u *models.User) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub":   u.ID,
		"email": u.Email,
		"iat":   now.Unix(),
		"exp":   now.Add(s.jwtTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}
