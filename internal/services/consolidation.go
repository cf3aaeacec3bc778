package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"mirror/internal/models"
	"mirror/internal/repository"
)

const consolidationSystemPrompt = `You read a person's reflections and notice what recurs in them.
Reply with a JSON array only. Each element is an object with the fields
"type" (one of "recurring_theme", "growth_edge", "emotional_pattern", "symbol"),
"content" (one or two sentences, second person) and "strength" (integer 1 to 10).
Return an empty array when nothing recurs.`

type ConsolidationSummary struct {
	Users    int `json:"users"`
	Batches  int `json:"batches"`
	Patterns int `json:"patterns"`
	Failed   int `json:"failed"`
}

// Consolidator turns unconsolidated conversation messages into patterns.
type Consolidator struct {
	repo       repository.PatternRepository
	llm        Completer
	archive    Archiver
	log        *zap.Logger
	batchSize  int
	batchLimit int
	now        func() time.Time
}

// NewConsolidator builds a Consolidator. archive may be nil.
func NewConsolidator(
	repo repository.PatternRepository,
	llm Completer,
	archive Archiver,
	log *zap.Logger,
	batchSize, batchLimit int,
) *Consolidator {
	if batchSize <= 0 {
		batchSize = 50
	}
	if batchLimit <= 0 {
		batchLimit = 1000
	}
	return &Consolidator{
		repo:       repo,
		llm:        llm,
		archive:    archive,
		log:        log,
		batchSize:  batchSize,
		batchLimit: batchLimit,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Run processes one sweep. A failing batch is counted and skipped; its
// messages stay unconsolidated for the next run.
func (c *Consolidator) Run(ctx context.Context) (ConsolidationSummary, error) {
	const op = "services.Consolidator.Run"
	log := c.log.With(zap.String("op", op))

	var sum ConsolidationSummary

	msgs, err := c.repo.ListUnconsolidated(ctx, c.batchLimit)
	if err != nil {
		return sum, fmt.Errorf("%s: %w: %w", op, ErrStore, err)
	}
	if len(msgs) == 0 {
		log.Info("nothing to consolidate")
		return sum, nil
	}

	users, byUser := groupByUser(msgs)
	sum.Users = len(users)

	for _, userID := range users {
		userMsgs := byUser[userID]
		for start, n := 0, 0; start < len(userMsgs); start, n = start+c.batchSize, n+1 {
			if err := ctx.Err(); err != nil {
				return sum, err
			}
			end := min(start+c.batchSize, len(userMsgs))

			sum.Batches++
			stored, err := c.consolidateBatch(ctx, userID, n, userMsgs[start:end])
			if err != nil {
				sum.Failed++
				log.Error("batch failed",
					zap.String("user_id", userID),
					zap.Int("batch", n),
					zap.Error(err),
				)
				continue
			}
			sum.Patterns += stored
		}
	}

	log.Info("consolidation finished",
		zap.Int("users", sum.Users),
		zap.Int("batches", sum.Batches),
		zap.Int("patterns", sum.Patterns),
		zap.Int("failed", sum.Failed),
	)
	return sum, nil
}

func (c *Consolidator) consolidateBatch(ctx context.Context, userID string, n int, msgs []models.ConversationMessage) (int, error) {
	raw, err := c.llm.Complete(ctx, consolidationSystemPrompt, transcript(msgs))
	if err != nil {
		return 0, fmt.Errorf("complete: %w", err)
	}

	drafts, err := parsePatterns(raw)
	if err != nil {
		return 0, err
	}

	ids := make([]string, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}

	now := c.now()
	patterns := make([]models.Pattern, 0, len(drafts))
	for _, d := range drafts {
		patterns = append(patterns, models.Pattern{
			ID:               uuid.NewString(),
			UserID:           userID,
			Type:             d.Type,
			Content:          d.Content,
			Strength:         d.Strength,
			SourceMessageIDs: ids,
			CreatedAt:        now,
		})
	}

	if err := c.repo.SaveBatch(ctx, patterns, ids); err != nil {
		return 0, fmt.Errorf("save: %w", err)
	}

	if c.archive != nil {
		key := fmt.Sprintf("consolidation/%s/%s/%d.json", now.Format("2006-01-02"), userID, n)
		if err := c.archive.Archive(ctx, key, []byte(raw)); err != nil {
			c.log.Warn("archive failed", zap.String("key", key), zap.Error(err))
		}
	}

	return len(patterns), nil
}

// groupByUser keeps users in first-seen order.
func groupByUser(msgs []models.ConversationMessage) ([]string, map[string][]models.ConversationMessage) {
	var order []string
	byUser := make(map[string][]models.ConversationMessage)
	for _, m := range msgs {
		if _, ok := byUser[m.UserID]; !ok {
			order = append(order, m.UserID)
		}
		byUser[m.UserID] = append(byUser[m.UserID], m)
	}
	return order, byUser
}

func transcript(msgs []models.ConversationMessage) string {
	var sb strings.Builder
	sb.WriteString("Reflections, oldest first:\n\n")
	for _, m := range msgs {
		fmt.Fprintf(&sb, "[%s] %s: %s\n", m.CreatedAt.Format("2006-01-02"), m.Role, strings.TrimSpace(m.Content))
	}
	return sb.String()
}

type patternDraft struct {
	Type     string `json:"type"`
	Content  string `json:"content"`
	Strength int    `json:"strength"`
}

var errNoPatternArray = errors.New("no JSON array in model output")

// parsePatterns decodes the first pattern array found in raw, drops entries
// with an unknown type or empty content and clamps strength into 1..10.
// Brackets in surrounding prose are skipped.
func parsePatterns(raw string) ([]patternDraft, error) {
	var drafts []patternDraft
	found := false
	for i := 0; i < len(raw) && !found; i++ {
		if raw[i] != '[' {
			continue
		}
		drafts = nil
		found = json.NewDecoder(strings.NewReader(raw[i:])).Decode(&drafts) == nil
	}
	if !found {
		return nil, errNoPatternArray
	}

	out := drafts[:0]
	for _, d := range drafts {
		d.Type = strings.TrimSpace(d.Type)
		d.Content = strings.TrimSpace(d.Content)
		if !models.ValidPatternType(d.Type) || d.Content == "" {
			continue
		}
		d.Strength = max(1, min(10, d.Strength))
		out = append(out, d)
	}
	return out, nil
}
