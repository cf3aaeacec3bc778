package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"mirror/internal/models"
	"mirror/internal/repository"
)

type VerificationResult struct {
	AlreadyVerified bool
}

// EmailVerificationService issues and confirms email verification tokens.
// The user row's email_verified flag is authoritative: a token that points at
// an already verified user is answered with AlreadyVerified and deleted.
type EmailVerificationService struct {
	users  repository.UserRepository
	tokens repository.EmailVerificationRepository
	mailer EmailSender
	log    *zap.Logger
	appURL string
	ttl    time.Duration
	now    func() time.Time
}

func NewEmailVerificationService(
	users repository.UserRepository,
	tokens repository.EmailVerificationRepository,
	mailer EmailSender,
	log *zap.Logger,
	appURL string,
	ttl time.Duration,
) *EmailVerificationService {
	return &EmailVerificationService{
		users:  users,
		tokens: tokens,
		mailer: mailer,
		log:    log,
		appURL: appURL,
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SendToUser emails a verification link to the user with userID.
func (s *EmailVerificationService) SendToUser(ctx context.Context, userID string) (VerificationResult, error) {
	const op = "services.EmailVerification.SendToUser"

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return VerificationResult{}, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		return VerificationResult{}, fmt.Errorf("%s: %w: %w", op, ErrStore, err)
	}
	return s.send(ctx, u)
}

// SendToEmail is SendToUser keyed by address. Unknown addresses return a
// zero result and nil so callers cannot tell them apart.
func (s *EmailVerificationService) SendToEmail(ctx context.Context, email string) (VerificationResult, error) {
	const op = "services.EmailVerification.SendToEmail"

	u, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.log.Info("verification requested for unknown email", zap.String("op", op))
			return VerificationResult{}, nil
		}
		return VerificationResult{}, fmt.Errorf("%s: %w: %w", op, ErrStore, err)
	}
	return s.send(ctx, u)
}

func (s *EmailVerificationService) send(ctx context.Context, u *models.User) (VerificationResult, error) {
	const op = "services.EmailVerification.send"
	log := s.log.With(zap.String("op", op), zap.String("user_id", u.ID))

	if u.EmailVerified {
		if err := s.tokens.DeleteByUserID(ctx, u.ID); err != nil {
			log.Warn("failed to clean up tokens of verified user", zap.Error(err))
		}
		return VerificationResult{AlreadyVerified: true}, nil
	}

	if err := s.tokens.DeleteByUserID(ctx, u.ID); err != nil {
		log.Error("failed to delete previous verification tokens", zap.Error(err))
		return VerificationResult{}, fmt.Errorf("%s: %w: %w", op, ErrStore, err)
	}

	rawToken, tokenHash, err := generateToken()
	if err != nil {
		return VerificationResult{}, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()
	token := &models.EmailVerificationToken{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		TokenHash: tokenHash,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.tokens.Create(ctx, token); err != nil {
		log.Error("failed to store verification token", zap.Error(err))
		return VerificationResult{}, fmt.Errorf("%s: %w: %w", op, ErrStore, err)
	}

	msg, err := verificationEmail(u.Email, u.Name, s.appURL, rawToken, s.ttl)
	if err == nil {
		err = s.mailer.Send(ctx, msg)
	}
	if err != nil {
		log.Error("failed to send verification email, revoking token", zap.Error(err))
		if delErr := s.tokens.Delete(ctx, token.ID); delErr != nil {
			log.Error("failed to revoke unsent verification token", zap.Error(delErr))
		}
		return VerificationResult{}, fmt.Errorf("%s: %w: %w", op, ErrEmailDelivery, err)
	}

	log.Info("verification email sent")
	return VerificationResult{}, nil
}

// Verify marks the owner of rawToken as verified.
func (s *EmailVerificationService) Verify(ctx context.Context, rawToken string) (VerificationResult, error) {
	const op = "services.EmailVerification.Verify"
	log := s.log.With(zap.String("op", op))

	token, err := s.tokens.GetByTokenHash(ctx, HashToken(rawToken))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return VerificationResult{}, fmt.Errorf("%s: %w", op, ErrTokenInvalid)
		}
		return VerificationResult{}, fmt.Errorf("%s: %w: %w", op, ErrStore, err)
	}
	log = log.With(zap.String("user_id", token.UserID))

	u, err := s.users.GetByID(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.deleteToken(ctx, log, token.ID)
			return VerificationResult{}, fmt.Errorf("%s: %w", op, ErrTokenInvalid)
		}
		return VerificationResult{}, fmt.Errorf("%s: %w: %w", op, ErrStore, err)
	}

	if u.EmailVerified {
		s.deleteToken(ctx, log, token.ID)
		return VerificationResult{AlreadyVerified: true}, nil
	}

	if token.Expired(s.now()) {
		s.deleteToken(ctx, log, token.ID)
		return VerificationResult{}, fmt.Errorf("%s: %w", op, ErrTokenExpired)
	}

	changed, err := s.users.MarkEmailVerified(ctx, u.ID, s.now())
	if err != nil {
		log.Error("failed to mark email verified", zap.Error(err))
		return VerificationResult{}, fmt.Errorf("%s: %w: %w", op, ErrStore, err)
	}
	if !changed {
		// Verified concurrently through another token.
		s.deleteToken(ctx, log, token.ID)
		return VerificationResult{AlreadyVerified: true}, nil
	}

	if err := s.tokens.DeleteSiblings(ctx, u.ID, token.ID); err != nil {
		log.Warn("failed to delete sibling verification tokens", zap.Error(err))
	}

	log.Info("email verified")
	return VerificationResult{}, nil
}

func (s *EmailVerificationService) deleteToken(ctx context.Context, log *zap.Logger, id string) {
	if err := s.tokens.Delete(ctx, id); err != nil {
		log.Warn("failed to delete verification token", zap.Error(err))
	}
}
