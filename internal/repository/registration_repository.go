package repository

import (
	"context"
	"database/sql"
	"fmt"

	"mirror/internal/models"
)

type RegistrationRepository interface {
	Create(ctx context.Context, reg *models.Registration) error
	List(ctx context.Context, limit int, offset int) ([]models.Registration, error)
	Count(ctx context.Context) (int, error)
}

type registrationRepository struct {
	db *sql.DB
}

func NewRegistrationRepository(db *sql.DB) RegistrationRepository {
	return &registrationRepository{db: db}
}

func (r *registrationRepository) Create(ctx context.Context, reg *models.Registration) error {
	query := `
		INSERT INTO registrations (id, name, email, language, source, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`

	err := r.db.QueryRowContext(ctx, query, reg.ID, reg.Name, reg.Email, reg.Language, reg.Source, reg.CreatedAt).Scan(&reg.CreatedAt)
	if err != nil {
		return fmt.Errorf("create registration: %w", err)
	}
	return nil
}

func (r *registrationRepository) List(ctx context.Context, limit int, offset int) ([]models.Registration, error) {
	query := `
		SELECT id, name, email, language, source, created_at
		FROM registrations
		ORDER BY created_at DESC
	`

	args := make([]any, 0, 2)
	argPos := 1
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argPos)
		args = append(args, limit)
		argPos++
	}
	if offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argPos)
		args = append(args, offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	regs := []models.Registration{}
	for rows.Next() {
		var reg models.Registration
		if err := rows.Scan(&reg.ID, &reg.Name, &reg.Email, &reg.Language, &reg.Source, &reg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		regs = append(regs, reg)
	}

	return regs, rows.Err()
}

func (r *registrationRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM registrations`).Scan(&total); err != nil {
		return 0, fmt.Errorf("count registrations: %w", err)
	}
	return total, nil
}
