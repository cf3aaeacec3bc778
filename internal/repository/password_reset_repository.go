package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"mirror/internal/models"
)

type PasswordResetRepository interface {
	Create(ctx context.Context, token *models.PasswordResetToken) error
	// GetByTokenHash returns the row regardless of its used or expired state.
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error)
	// Consume marks the token used and stores the new password hash in one
	// transaction. It returns ErrNotFound when the token was already spent
	// or the user is gone; nothing is written in that case.
	Consume(ctx context.Context, tokenID string, userID string, passwordHash string, usedAt time.Time) error
	Delete(ctx context.Context, id string) error
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteSiblings removes every token of the user except keepID.
	DeleteSiblings(ctx context.Context, userID string, keepID string) error
}

type passwordResetRepository struct {
	db *sql.DB
}

func NewPasswordResetRepository(db *sql.DB) PasswordResetRepository {
	return &passwordResetRepository{db: db}
}

func (r *passwordResetRepository) Create(ctx context.Context, token *models.PasswordResetToken) error {
	query := `
		INSERT INTO password_reset_tokens (id, user_id, token_hash, expires_at, used, created_at)
		VALUES ($1, $2, $3, $4, FALSE, $5)
		RETURNING created_at
	`

	err := r.db.QueryRowContext(ctx, query, token.ID, token.UserID, token.TokenHash, token.ExpiresAt, token.CreatedAt).Scan(&token.CreatedAt)
	if err != nil {
		return fmt.Errorf("create reset token: %w", err)
	}
	return nil
}

func (r *passwordResetRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error) {
	query := `
		SELECT id, user_id, token_hash, expires_at, used, used_at, created_at
		FROM password_reset_tokens
		WHERE token_hash = $1
	`

	var t models.PasswordResetToken
	var usedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, tokenHash).Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.Used, &usedAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get reset token: %w", err)
	}
	if usedAt.Valid {
		t.UsedAt = &usedAt.Time
	}
	return &t, nil
}

func (r *passwordResetRepository) Consume(ctx context.Context, tokenID string, userID string, passwordHash string, usedAt time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE password_reset_tokens SET used = TRUE, used_at = $1 WHERE id = $2 AND used = FALSE`,
		usedAt, tokenID,
	)
	if err != nil {
		return fmt.Errorf("mark reset token used: %w", err)
	}
	if err := expectOneRow(res); err != nil {
		return fmt.Errorf("mark reset token used: %w", err)
	}

	res, err = tx.ExecContext(ctx, `UPDATE users SET password_hash = $1 WHERE id = $2`, passwordHash, userID)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if err := expectOneRow(res); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	return tx.Commit()
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *passwordResetRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM password_reset_tokens WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete reset token: %w", err)
	}
	return nil
}

func (r *passwordResetRepository) DeleteByUserID(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM password_reset_tokens WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete user reset tokens: %w", err)
	}
	return nil
}

func (r *passwordResetRepository) DeleteSiblings(ctx context.Context, userID string, keepID string) error {
	query := `DELETE FROM password_reset_tokens WHERE user_id = $1 AND id <> $2`
	if _, err := r.db.ExecContext(ctx, query, userID, keepID); err != nil {
		return fmt.Errorf("delete sibling reset tokens: %w", err)
	}
	return nil
}
