package store

import (
	"github.com/idusortus/predictwithfriends/internal/settlement"
	"github.com/shopspring/decimal"
)

// Balances move in exactly two places: debit when a bet is placed and the
// credits computed at resolution. Both build journal entries first and are
// applied to memory only after the journal accepted them.

func (s *Store) debit(user *User, bet *Bet) entry {
	amount := decimal.NewFromInt(bet.Amount)
	return entry{
		userID:   user.ID,
		marketID: bet.MarketID,
		betID:    bet.ID,
		kind:     BetTx,
		amount:   amount,
		before:   user.Balance,
		after:    user.Balance.Sub(amount),
	}
}

// credits turns settlement payouts into journal entries, chaining balances
// for users holding several winning bets. A forfeited pool becomes one Void
// entry without a user.
func (s *Store) credits(market *Market, result settlement.Result) []entry {
	running := make(map[string]decimal.Decimal)
	entries := make([]entry, 0, len(result.Payouts)+1)
	for _, p := range result.Payouts {
		user, ok := s.users[p.UserID]
		if !ok {
			s.logger.Warnf("Payout %s for unknown user %s skipped", p.WagerID, p.UserID)
			continue
		}
		before, seen := running[user.ID]
		if !seen {
			before = user.Balance
		}
		after := before.Add(p.Amount)
		running[user.ID] = after
		entries = append(entries, entry{
			userID:   user.ID,
			marketID: market.ID,
			betID:    p.WagerID,
			kind:     WinTx,
			amount:   p.Amount,
			before:   before,
			after:    after,
		})
	}
	if result.Forfeited.IsPositive() {
		entries = append(entries, entry{
			marketID: market.ID,
			kind:     VoidTx,
			amount:   result.Forfeited,
		})
	}
	return entries
}

func (s *Store) apply(entries []entry) {
	for _, e := range entries {
		if e.kind != WinTx {
			continue
		}
		if user, ok := s.users[e.userID]; ok {
			user.Balance = e.after
		}
	}
}
