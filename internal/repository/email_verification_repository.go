package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"mirror/internal/models"
)

type EmailVerificationRepository interface {
	Create(ctx context.Context, token *models.EmailVerificationToken) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.EmailVerificationToken, error)
	Delete(ctx context.Context, id string) error
	DeleteByUserID(ctx context.Context, userID string) error
	DeleteSiblings(ctx context.Context, userID string, keepID string) error
}

type emailVerificationRepository struct {
	db *sql.DB
}

func NewEmailVerificationRepository(db *sql.DB) EmailVerificationRepository {
	return &emailVerificationRepository{db: db}
}

func (r *emailVerificationRepository) Create(ctx context.Context, token *models.EmailVerificationToken) error {
	query := `
		INSERT INTO email_verification_tokens (id, user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`

	err := r.db.QueryRowContext(ctx, query, token.ID, token.UserID, token.TokenHash, token.ExpiresAt, token.CreatedAt).Scan(&token.CreatedAt)
	if err != nil {
		return fmt.Errorf("create verification token: %w", err)
	}
	return nil
}

func (r *emailVerificationRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*models.EmailVerificationToken, error) {
	query := `
		SELECT id, user_id, token_hash, expires_at, created_at
		FROM email_verification_tokens
		WHERE token_hash = $1
	`

	var t models.EmailVerificationToken
	err := r.db.QueryRowContext(ctx, query, tokenHash).Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get verification token: %w", err)
	}
	return &t, nil
}

func (r *emailVerificationRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM email_verification_tokens WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete verification token: %w", err)
	}
	return nil
}

func (r *emailVerificationRepository) DeleteByUserID(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM email_verification_tokens WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete user verification tokens: %w", err)
	}
	return nil
}

func (r *emailVerificationRepository) DeleteSiblings(ctx context.Context, userID string, keepID string) error {
	query := `DELETE FROM email_verification_tokens WHERE user_id = $1 AND id <> $2`
	if _, err := r.db.ExecContext(ctx, query, userID, keepID); err != nil {
		return fmt.Errorf("delete sibling verification tokens: %w", err)
	}
	return nil
}
