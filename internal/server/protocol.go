package server

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/idusortus/predictwithfriends/internal/settlement"
	"github.com/idusortus/predictwithfriends/internal/store"
	"github.com/shopspring/decimal"
)

// request is the union of every client command. Which fields matter depends
// on Type.
type request struct {
	Type       string      `json:"type"`
	SessionID  string      `json:"sessionId"`
	Username   string      `json:"username"`
	InviteCode string      `json:"inviteCode"`
	Question   string      `json:"question"`
	CloseDate  json.Number `json:"closeDate"`
	MarketID   string      `json:"marketId"`
	Side       string      `json:"side"`
	Amount     json.Number `json:"amount"`
	Outcome    string      `json:"outcome"`
	Message    string      `json:"message"`
}

type ErrorResponse struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type SessionResponse struct {
	Type      string  `json:"type"`
	SessionID string  `json:"sessionId"`
	UserID    string  `json:"userId"`
	Username  string  `json:"username"`
	Balance   float64 `json:"balance"`
}

type StateResponse struct {
	Type         string        `json:"type"`
	User         UserView      `json:"user"`
	Markets      []MarketView  `json:"markets"`
	UserBets     []BetView     `json:"userBets"`
	ChatMessages []MessageView `json:"chatMessages"`
}

type MarketResponse struct {
	Type   string     `json:"type"`
	Market MarketView `json:"market"`
}

type BetResponse struct {
	Type       string     `json:"type"`
	Bet        BetView    `json:"bet"`
	Market     MarketView `json:"market"`
	UserID     string     `json:"userId"`
	NewBalance float64    `json:"newBalance"`
}

type ChatResponse struct {
	Type        string      `json:"type"`
	ChatMessage MessageView `json:"chatMessage"`
}

type PresenceResponse struct {
	Type      string `json:"type"`
	Username  string `json:"username"`
	Timestamp int64  `json:"timestamp"`
}

type UserView struct {
	UserID   string    `json:"userId"`
	Username string    `json:"username"`
	Balance  float64   `json:"balance"`
	Stats    StatsView `json:"stats"`
}

type StatsView struct {
	BetCount int     `json:"betCount"`
	BetSum   float64 `json:"betSum"`
	WinCount int     `json:"winCount"`
	WinSum   float64 `json:"winSum"`
}

type MarketView struct {
	ID          string  `json:"id"`
	Question    string  `json:"question"`
	CreatorID   string  `json:"creatorId"`
	CreatorName string  `json:"creatorName"`
	CloseDate   int64   `json:"closeDate"`
	CreatedAt   int64   `json:"createdAt"`
	Resolved    bool    `json:"resolved"`
	Outcome     *string `json:"outcome"`
	ResolvedAt  int64   `json:"resolvedAt,omitempty"`
	YesPool     int64   `json:"yesPool"`
	NoPool      int64   `json:"noPool"`
	YesShares   int64   `json:"yesShares"`
	NoShares    int64   `json:"noShares"`
	YesPrice    float64 `json:"yesPrice"`
	NoPrice     float64 `json:"noPrice"`
}

type BetView struct {
	ID        string `json:"id"`
	MarketID  string `json:"marketId"`
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	Side      string `json:"side"`
	Amount    int64  `json:"amount"`
	Shares    int64  `json:"shares"`
	Timestamp int64  `json:"timestamp"`
}

type MessageView struct {
	Username  string `json:"username"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func tokens(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}

func marketView(m store.Market) MarketView {
	v := MarketView{
		ID:          m.ID,
		Question:    m.Question,
		CreatorID:   m.CreatorID,
		CreatorName: m.CreatorName,
		CloseDate:   millis(m.CloseAt),
		CreatedAt:   millis(m.CreatedAt),
		Resolved:    m.Resolved,
		ResolvedAt:  millis(m.ResolvedAt),
		YesPool:     m.YesPool,
		NoPool:      m.NoPool,
		YesShares:   m.YesShares,
		NoShares:    m.NoShares,
		YesPrice:    settlement.Price(m.YesPool, m.NoPool, settlement.Yes).InexactFloat64(),
		NoPrice:     settlement.Price(m.YesPool, m.NoPool, settlement.No).InexactFloat64(),
	}
	if m.Outcome != "" {
		outcome := string(m.Outcome)
		v.Outcome = &outcome
	}
	return v
}

func betView(b store.Bet) BetView {
	return BetView{
		ID:        b.ID,
		MarketID:  b.MarketID,
		UserID:    b.UserID,
		Username:  b.Username,
		Side:      string(b.Side),
		Amount:    b.Amount,
		Shares:    b.Shares,
		Timestamp: millis(b.PlacedAt),
	}
}

func messageView(m store.ChatMessage) MessageView {
	return MessageView{Username: m.Username, Message: m.Text, Timestamp: millis(m.SentAt)}
}

func stateResponse(s store.State) StateResponse {
	res := StateResponse{
		Type: "state",
		User: UserView{
			UserID:   s.User.ID,
			Username: s.User.Username,
			Balance:  tokens(s.User.Balance),
			Stats: StatsView{
				BetCount: s.Stats.BetCount,
				BetSum:   tokens(s.Stats.BetSum),
				WinCount: s.Stats.WinCount,
				WinSum:   tokens(s.Stats.WinSum),
			},
		},
		Markets:      make([]MarketView, 0, len(s.Markets)),
		UserBets:     make([]BetView, 0, len(s.Bets)),
		ChatMessages: make([]MessageView, 0, len(s.Chat)),
	}
	for _, m := range s.Markets {
		res.Markets = append(res.Markets, marketView(m))
	}
	for _, b := range s.Bets {
		res.UserBets = append(res.UserBets, betView(b))
	}
	for _, m := range s.Chat {
		res.ChatMessages = append(res.ChatMessages, messageView(m))
	}
	return res
}

// EncodeEvent renders a store event as the JSON frame broadcast to clients.
func EncodeEvent(e store.Event) ([]byte, error) {
	switch p := e.Payload.(type) {
	case store.Presence:
		return json.Marshal(PresenceResponse{Type: string(e.Type), Username: p.Username, Timestamp: millis(p.At)})
	case store.Market:
		return json.Marshal(MarketResponse{Type: string(e.Type), Market: marketView(p)})
	case store.BetPlaced:
		return json.Marshal(BetResponse{
			Type:       string(e.Type),
			Bet:        betView(p.Bet),
			Market:     marketView(p.Market),
			UserID:     p.UserID,
			NewBalance: tokens(p.NewBalance),
		})
	case store.ChatMessage:
		return json.Marshal(ChatResponse{Type: string(e.Type), ChatMessage: messageView(p)})
	}
	return nil, fmt.Errorf("unexpected payload %T for %s", e.Payload, e.Type)
}

// maxCloseDate is the last millisecond of year 9999.
const maxCloseDate = 253402300799999

// closeDate reads an optional Unix millisecond timestamp. Missing,
// non-positive or out of range values mean "use the default".
func closeDate(n json.Number) time.Time {
	if n == "" {
		return time.Time{}
	}
	f, err := n.Float64()
	if err != nil || f <= 0 || f > maxCloseDate {
		return time.Time{}
	}
	return time.UnixMilli(int64(f))
}

// amount reads the stake as an exact decimal. Anything unreadable becomes
// zero, which the store rejects as an invalid amount.
func amount(n json.Number) decimal.Decimal {
	if n == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Zero
	}
	return d
}
