package store

import (
	"time"

	"github.com/shopspring/decimal"
)

type EventType string

const (
	EventUserJoined     EventType = "userJoined"
	EventUserLeft       EventType = "userLeft"
	EventMarketCreated  EventType = "marketCreated"
	EventBetPlaced      EventType = "betPlaced"
	EventMarketResolved EventType = "marketResolved"
	EventChatMessage    EventType = "chatMessage"
)

// Event is a state change fanned out to every live connection except Except.
//
// Payload is one of Presence, Market, BetPlaced or ChatMessage.
type Event struct {
	Type    EventType
	Except  string
	Payload interface{}
}

type Presence struct {
	Username string
	At       time.Time
}

type BetPlaced struct {
	Bet        Bet
	Market     Market
	UserID     string
	NewBalance decimal.Decimal
}

// Publisher delivers events to connections. Publish is called with the store
// lock held and must not block.
type Publisher interface {
	Publish(e Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(Event) {}
