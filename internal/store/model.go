package store

import (
	"strings"
	"time"

	"github.com/idusortus/predictwithfriends/internal/settlement"
	"github.com/shopspring/decimal"
)

type Side = settlement.Side

const (
	Yes = settlement.Yes
	No  = settlement.No
)

// ParseSide accepts "yes" or "no" in any case.
func ParseSide(s string) (Side, bool) {
	switch Side(strings.ToLower(strings.TrimSpace(s))) {
	case Yes:
		return Yes, true
	case No:
		return No, true
	}
	return "", false
}

type User struct {
	ID        string
	Username  string
	Balance   decimal.Decimal
	CreatedAt time.Time
}

type Session struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
}

type Market struct {
	ID          string
	Question    string
	CreatorID   string
	CreatorName string
	CreatedAt   time.Time
	// CloseAt is advisory, bets are accepted after it.
	CloseAt    time.Time
	Resolved   bool
	Outcome    Side
	ResolvedAt time.Time
	YesPool    int64
	NoPool     int64
	YesShares  int64
	NoShares   int64
}

type Bet struct {
	ID       string
	MarketID string
	UserID   string
	Username string
	Side     Side
	Amount   int64
	Shares   int64
	PlacedAt time.Time
}

type ChatMessage struct {
	Username string
	Text     string
	SentAt   time.Time
}

// Statistic summarises a user's journal entries.
type Statistic struct {
	UserID   string
	BetCount int
	BetSum   decimal.Decimal
	WinCount int
	WinSum   decimal.Decimal
}

type TransactionType string

const (
	GrantTx TransactionType = "Grant"
	BetTx   TransactionType = "Bet"
	WinTx   TransactionType = "Win"
	// VoidTx records a pool nobody could win.
	VoidTx TransactionType = "Void"
)

// State is everything a client needs to rebuild its view.
type State struct {
	User    User
	Stats   Statistic
	Markets []Market
	Bets    []Bet
	Chat    []ChatMessage
}
