package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"mirror/internal/models"
	"mirror/internal/repository"
)

// PasswordResetService issues, validates and consumes password reset tokens.
//
// A consumed token stays in the table with used=true so that replaying the
// link yields ErrTokenUsed. It disappears on the next reissue for the user or
// when a lookup finds it expired.
type PasswordResetService struct {
	users  repository.UserRepository
	resets repository.PasswordResetRepository
	mailer EmailSender
	log    *zap.Logger
	appURL string
	ttl    time.Duration
	now    func() time.Time
}

func NewPasswordResetService(
	users repository.UserRepository,
	resets repository.PasswordResetRepository,
	mailer EmailSender,
	log *zap.Logger,
	appURL string,
	ttl time.Duration,
) *PasswordResetService {
	return &PasswordResetService{
		users:  users,
		resets: resets,
		mailer: mailer,
		log:    log,
		appURL: appURL,
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// RequestReset emails a fresh reset link to the account registered under
// email. An unknown email is not an error: nothing is created or sent and nil
// is returned, exactly as for a known one.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) error {
	const op = "services.PasswordReset.RequestReset"
	log := s.log.With(zap.String("op", op))

	u, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Info("reset requested for unknown email")
			return nil
		}
		log.Error("failed to look up user", zap.Error(err))
		return fmt.Errorf("%s: %w: %w", op, ErrStore, err)
	}
	log = log.With(zap.String("user_id", u.ID))

	rawToken, token, err := s.issue(ctx, u.ID)
	if err != nil {
		log.Error("failed to issue reset token", zap.Error(err))
		return fmt.Errorf("%s: %w: %w", op, ErrStore, err)
	}

	msg, err := resetPasswordEmail(u.Email, u.Name, s.appURL, rawToken, s.ttl)
	if err == nil {
		err = s.mailer.Send(ctx, msg)
	}
	if err != nil {
		log.Error("failed to send reset email, revoking token", zap.Error(err))
		if delErr := s.resets.Delete(ctx, token.ID); delErr != nil {
			log.Error("failed to revoke unsent reset token", zap.Error(delErr))
		}
		return fmt.Errorf("%s: %w: %w", op, ErrEmailDelivery, err)
	}

	log.Info("reset email sent")
	return nil
}

// issue replaces every reset token of the user with a new one.
func (s *PasswordResetService) issue(ctx context.Context, userID string) (string, *models.PasswordResetToken, error) {
	if err := s.resets.DeleteByUserID(ctx, userID); err != nil {
		return "", nil, err
	}

	rawToken, tokenHash, err := generateToken()
	if err != nil {
		return "", nil, err
	}

	now := s.now()
	token := &models.PasswordResetToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.resets.Create(ctx, token); err != nil {
		return "", nil, err
	}
	return rawToken, token, nil
}

// ValidateToken reports whether rawToken may still be used to reset a
// password. Expiry is checked before the used flag, and an expired row is
// deleted on the way out.
func (s *PasswordResetService) ValidateToken(ctx context.Context, rawToken string) (*models.PasswordResetToken, error) {
	const op = "services.PasswordReset.ValidateToken"

	token, err := s.resets.GetByTokenHash(ctx, HashToken(rawToken))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrTokenInvalid)
		}
		return nil, fmt.Errorf("%s: %w: %w", op, ErrStore, err)
	}

	if token.Expired(s.now()) {
		if err := s.resets.Delete(ctx, token.ID); err != nil {
			s.log.Warn("failed to delete expired reset token", zap.String("op", op), zap.Error(err))
		}
		return nil, fmt.Errorf("%s: %w", op, ErrTokenExpired)
	}

	if token.Used {
		return nil, fmt.Errorf("%s: %w", op, ErrTokenUsed)
	}

	return token, nil
}

// ResetPassword sets newPassword for the owner of rawToken and spends the
// token. The password policy is checked before any lookup.
func (s *PasswordResetService) ResetPassword(ctx context.Context, rawToken string, newPassword string) error {
	const op = "services.PasswordReset.ResetPassword"

	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	token, err := s.ValidateToken(ctx, rawToken)
	if err != nil {
		return err
	}
	log := s.log.With(zap.String("op", op), zap.String("user_id", token.UserID))

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	// The conditional claim inside Consume means two concurrent submissions
	// cannot both change the password, and a failed write leaves the token
	// usable.
	if err := s.resets.Consume(ctx, token.ID, token.UserID, string(hash), s.now()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrTokenUsed)
		}
		log.Error("failed to consume reset token", zap.Error(err))
		return fmt.Errorf("%s: %w: %w", op, ErrStore, err)
	}

	if err := s.resets.DeleteSiblings(ctx, token.UserID, token.ID); err != nil {
		log.Warn("failed to delete sibling reset tokens", zap.Error(err))
	}

	log.Info("password reset")
	return nil
}
