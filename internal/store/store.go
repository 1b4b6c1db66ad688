// Package store owns all mutable state of the exchange: users and their
// balances, sessions, markets, the bet log and chat. Every exported method is
// one command applied under a single lock, and events are handed to the
// Publisher before the lock is released so broadcasts follow application order.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type Options struct {
	InviteCodes     []string
	StartingBalance decimal.Decimal
	SessionTTL      time.Duration
	MarketTTL       time.Duration
	ChatHistory     int
	ChatStateWindow int
	JournalDSN      string
	// Clock defaults to time.Now.
	Clock func() time.Time
}

func DefaultOptions() Options {
	return Options{
		InviteCodes:     []string{"ALPHA2026", "BETA2026", "GAMMA2026"},
		StartingBalance: decimal.NewFromInt(1000),
		SessionTTL:      24 * time.Hour,
		MarketTTL:       7 * 24 * time.Hour,
		ChatHistory:     100,
		ChatStateWindow: 50,
		JournalDSN:      ":memory:",
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.InviteCodes == nil {
		o.InviteCodes = d.InviteCodes
	}
	if !o.StartingBalance.IsPositive() {
		o.StartingBalance = d.StartingBalance
	}
	if o.SessionTTL <= 0 {
		o.SessionTTL = d.SessionTTL
	}
	if o.MarketTTL <= 0 {
		o.MarketTTL = d.MarketTTL
	}
	if o.ChatHistory <= 0 {
		o.ChatHistory = d.ChatHistory
	}
	if o.ChatStateWindow <= 0 || o.ChatStateWindow > o.ChatHistory {
		o.ChatStateWindow = min(d.ChatStateWindow, o.ChatHistory)
	}
	if o.JournalDSN == "" {
		o.JournalDSN = d.JournalDSN
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return o
}

type Store struct {
	mu        sync.Mutex
	logger    *logrus.Logger
	publisher Publisher
	journal   *journal
	opts      Options
	invites   map[string]struct{}

	users     map[string]*User
	usernames map[string]string // lower-cased username -> user id
	sessions  map[string]*Session
	markets   map[string]*Market
	// marketOrder keeps markets in creation order.
	marketOrder []string
	bets        []*Bet
	chat        []ChatMessage

	userSeq   uint64
	marketSeq uint64
	betSeq    uint64
}

// New opens the journal and returns an empty store. The journal is closed when
// ctx is done.
func New(ctx context.Context, logger *logrus.Logger, publisher Publisher, opts Options) (*Store, error) {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	opts = opts.withDefaults()
	j, err := openJournal(opts.JournalDSN)
	if err != nil {
		return nil, err
	}
	s := &Store{
		logger:    logger,
		publisher: publisher,
		journal:   j,
		opts:      opts,
		invites:   make(map[string]struct{}, len(opts.InviteCodes)),
		users:     make(map[string]*User),
		usernames: make(map[string]string),
		sessions:  make(map[string]*Session),
		markets:   make(map[string]*Market),
	}
	for _, code := range opts.InviteCodes {
		s.invites[code] = struct{}{}
	}

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		if err := s.journal.close(); err != nil {
			s.logger.Error("Can't close journal: ", err)
			return
		}
		s.logger.Info("Journal closed")
	}()
	return s, nil
}

func (s *Store) now() time.Time {
	return s.opts.Clock()
}

func nextID(prefix string, seq uint64) string {
	return fmt.Sprintf("%s%d", prefix, seq+1)
}

// Summary reports journal totals.
func (s *Store) Summary() (Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.journal.summary()
}
