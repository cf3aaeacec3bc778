package models

import "time"

type ConversationMessage struct {
	ID        string
	UserID    string
	Role      string
	Content   string
	CreatedAt time.Time
}

const (
	PatternRecurringTheme   = "recurring_theme"
	PatternGrowthEdge       = "growth_edge"
	PatternEmotionalPattern = "emotional_pattern"
	PatternSymbol           = "symbol"
)

// Pattern is a recurring theme extracted from a batch of a user's messages.
type Pattern struct {
	ID               string
	UserID           string
	Type             string
	Content          string
	Strength         int
	SourceMessageIDs []string
	CreatedAt        time.Time
}

func ValidPatternType(t string) bool {
	switch t {
	case PatternRecurringTheme, PatternGrowthEdge, PatternEmotionalPattern, PatternSymbol:
		return true
	}
	return false
}
