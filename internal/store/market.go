package store

import (
	"math"
	"strings"
	"time"

	"github.com/idusortus/predictwithfriends/internal/settlement"
	"github.com/shopspring/decimal"
)

// CreateMarket opens a market with empty pools. A zero closeAt means now plus
// the configured market lifetime.
func (s *Store) CreateMarket(token, question string, closeAt time.Time) (Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	user, err := s.validate(token, now)
	if err != nil {
		return Market{}, err
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return Market{}, invalidInput("question is required")
	}
	if closeAt.IsZero() {
		closeAt = now.Add(s.opts.MarketTTL)
	}

	market := &Market{
		ID:          nextID("market", s.marketSeq),
		Question:    question,
		CreatorID:   user.ID,
		CreatorName: user.Username,
		CreatedAt:   now,
		CloseAt:     closeAt,
	}
	if err = s.journal.recordMarket(market); err != nil {
		return Market{}, err
	}
	s.marketSeq++
	s.markets[market.ID] = market
	s.marketOrder = append(s.marketOrder, market.ID)

	s.publisher.Publish(Event{Type: EventMarketCreated, Payload: *market})
	return *market, nil
}

// PlaceBet stakes amount tokens on side. One token buys one share; the price
// implied by the pools is never used to size the bet.
func (s *Store) PlaceBet(token, marketID, side string, amount decimal.Decimal) (Bet, Market, decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	user, err := s.validate(token, now)
	if err != nil {
		return Bet{}, Market{}, decimal.Zero, err
	}
	market, ok := s.markets[marketID]
	if !ok {
		return Bet{}, Market{}, decimal.Zero, &NotFoundError{Err: ErrMarketNotFound}
	}
	if market.Resolved {
		return Bet{}, Market{}, decimal.Zero, &ValidationError{Err: ErrMarketResolved}
	}
	chosen, ok := ParseSide(side)
	if !ok {
		return Bet{}, Market{}, decimal.Zero, invalidInput("side must be yes or no")
	}
	stake, ok := wholeTokens(amount)
	if !ok {
		return Bet{}, Market{}, decimal.Zero, &ValidationError{Err: ErrInvalidAmount}
	}
	if amount.GreaterThan(user.Balance) {
		return Bet{}, Market{}, decimal.Zero, &ValidationError{Err: ErrInsufficientBalance}
	}

	bet := &Bet{
		ID:       nextID("bet", s.betSeq),
		MarketID: market.ID,
		UserID:   user.ID,
		Username: user.Username,
		Side:     chosen,
		Amount:   stake,
		Shares:   stake,
		PlacedAt: now,
	}
	debit := s.debit(user, bet)
	if err = s.journal.recordBet(debit, now); err != nil {
		return Bet{}, Market{}, decimal.Zero, err
	}

	s.betSeq++
	s.bets = append(s.bets, bet)
	user.Balance = debit.after
	if chosen == Yes {
		market.YesPool += stake
		market.YesShares += stake
	} else {
		market.NoPool += stake
		market.NoShares += stake
	}

	s.publisher.Publish(Event{
		Type: EventBetPlaced,
		Payload: BetPlaced{
			Bet:        *bet,
			Market:     *market,
			UserID:     user.ID,
			NewBalance: user.Balance,
		},
	})
	return *bet, *market, user.Balance, nil
}

// ResolveMarket settles the market on outcome and credits the winners. Only
// the creator may resolve and only once; the lock makes the resolved check and
// the payouts a single step.
func (s *Store) ResolveMarket(token, marketID, outcome string) (Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	user, err := s.validate(token, now)
	if err != nil {
		return Market{}, err
	}
	market, ok := s.markets[marketID]
	if !ok {
		return Market{}, &NotFoundError{Err: ErrMarketNotFound}
	}
	if market.CreatorID != user.ID {
		return Market{}, &ValidationError{Err: ErrNotCreator}
	}
	if market.Resolved {
		return Market{}, &ValidationError{Err: ErrMarketResolved}
	}
	side, ok := ParseSide(outcome)
	if !ok {
		return Market{}, &ValidationError{Err: ErrInvalidOutcome}
	}

	resolved := *market
	resolved.Resolved = true
	resolved.Outcome = side
	resolved.ResolvedAt = now

	result := settlement.Settle(market.YesPool, market.NoPool, side, s.wagers(market.ID))
	credits := s.credits(&resolved, result)
	if err = s.journal.recordResolution(&resolved, credits); err != nil {
		return Market{}, err
	}

	*market = resolved
	s.apply(credits)
	if result.Forfeited.IsPositive() {
		s.logger.Warnf("Market %s resolved %s with an empty winning pool, %s tokens forfeited",
			market.ID, side, result.Forfeited)
	}

	s.publisher.Publish(Event{Type: EventMarketResolved, Payload: *market})
	return *market, nil
}

// maxStakeExponent bounds a stake's decimal exponent. It is checked before any
// comparison rescales the value.
const maxStakeExponent = 18

var maxStake = decimal.NewFromInt(math.MaxInt64)

// wholeTokens returns amount as a stake when it is a positive whole number
// that fits an int64.
func wholeTokens(amount decimal.Decimal) (int64, bool) {
	if exp := amount.Exponent(); exp > maxStakeExponent || exp < -maxStakeExponent {
		return 0, false
	}
	if !amount.IsPositive() || !amount.IsInteger() || amount.GreaterThan(maxStake) {
		return 0, false
	}
	return amount.IntPart(), true
}

// wagers lists the bets on a market in placement order. Caller holds s.mu.
func (s *Store) wagers(marketID string) []settlement.Wager {
	var out []settlement.Wager
	for _, b := range s.bets {
		if b.MarketID != marketID {
			continue
		}
		out = append(out, settlement.Wager{ID: b.ID, UserID: b.UserID, Side: b.Side, Amount: b.Amount})
	}
	return out
}
