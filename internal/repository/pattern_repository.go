package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"mirror/internal/models"
)

// PatternRepository feeds the consolidation job: it reads unconsolidated
// conversation messages and stores the patterns extracted from them.
type PatternRepository interface {
	ListUnconsolidated(ctx context.Context, limit int) ([]models.ConversationMessage, error)
	// SaveBatch inserts the patterns and marks messageIDs consolidated in one
	// transaction.
	SaveBatch(ctx context.Context, patterns []models.Pattern, messageIDs []string) error
}

type patternRepository struct {
	db *sql.DB
}

func NewPatternRepository(db *sql.DB) PatternRepository {
	return &patternRepository{db: db}
}

func (r *patternRepository) ListUnconsolidated(ctx context.Context, limit int) ([]models.ConversationMessage, error) {
	query := `
		SELECT id, user_id, role, content, created_at
		FROM conversation_messages
		WHERE consolidated = FALSE
		ORDER BY created_at, id
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list unconsolidated messages: %w", err)
	}
	defer rows.Close()

	var msgs []models.ConversationMessage
	for rows.Next() {
		var m models.ConversationMessage
		if err := rows.Scan(&m.ID, &m.UserID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}

	return msgs, rows.Err()
}

func (r *patternRepository) SaveBatch(ctx context.Context, patterns []models.Pattern, messageIDs []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	insert := `
		INSERT INTO patterns (id, user_id, pattern_type, content, strength, source_message_ids, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for _, p := range patterns {
		if _, err := tx.ExecContext(ctx, insert,
			p.ID, p.UserID, p.Type, p.Content, p.Strength, pq.Array(p.SourceMessageIDs), p.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert pattern: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE conversation_messages SET consolidated = TRUE WHERE id = ANY($1)`,
		pq.Array(messageIDs),
	); err != nil {
		return fmt.Errorf("mark consolidated: %w", err)
	}

	return tx.Commit()
}
