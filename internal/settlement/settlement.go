// Package settlement computes pari-mutuel payouts for binary markets.
//
// Settlement is a pure function of the pools at resolution time, the wagers
// placed on the market and the chosen outcome. It never touches balances; the
// caller applies the returned payouts.
package settlement

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Places is the number of fractional digits kept on every payout.
const Places int32 = 2

type Side string

const (
	Yes Side = "yes"
	No  Side = "no"
)

// Wager is one bet as seen by the settlement engine.
type Wager struct {
	ID     string
	UserID string
	Side   Side
	Amount int64
}

type Payout struct {
	WagerID string
	UserID  string
	Amount  decimal.Decimal
}

type Result struct {
	TotalPool   int64
	WinningPool int64
	Payouts     []Payout
	// Forfeited is the part of the total pool no winner receives. It is
	// non-zero only when nobody backed the winning side.
	Forfeited decimal.Decimal
}

// Settle splits the whole pool between the wagers on the winning side in
// proportion to their stake: amount / winningPool * totalPool.
//
// Each share is floored to Places digits and the leftover units are handed out
// one at a time by largest truncated remainder (ties go to the earlier wager),
// so the payouts always add up to exactly the total pool. An empty winning
// pool yields no payouts.
func Settle(yesPool, noPool int64, outcome Side, wagers []Wager) Result {
	res := Result{
		TotalPool: yesPool + noPool,
		Forfeited: decimal.Zero,
	}
	if outcome == Yes {
		res.WinningPool = yesPool
	} else {
		res.WinningPool = noPool
	}
	if res.WinningPool == 0 {
		res.Forfeited = decimal.NewFromInt(res.TotalPool)
		return res
	}

	total := decimal.NewFromInt(res.TotalPool)
	winning := decimal.NewFromInt(res.WinningPool)

	var remainders []decimal.Decimal
	paid := decimal.Zero
	for _, w := range wagers {
		if w.Side != outcome || w.Amount <= 0 {
			continue
		}
		share, rem := decimal.NewFromInt(w.Amount).Mul(total).QuoRem(winning, Places)
		res.Payouts = append(res.Payouts, Payout{WagerID: w.ID, UserID: w.UserID, Amount: share})
		remainders = append(remainders, rem)
		paid = paid.Add(share)
	}
	if len(res.Payouts) == 0 {
		res.Forfeited = total
		return res
	}

	unit := decimal.New(1, -Places)
	leftover := total.Sub(paid).Div(unit).IntPart()
	order := make([]int, len(res.Payouts))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return remainders[order[a]].GreaterThan(remainders[order[b]])
	})
	for i := int64(0); i < leftover && i < int64(len(order)); i++ {
		p := &res.Payouts[order[i]]
		p.Amount = p.Amount.Add(unit)
	}
	return res
}

// Sum adds up the payout amounts.
func Sum(payouts []Payout) decimal.Decimal {
	sum := decimal.Zero
	for _, p := range payouts {
		sum = sum.Add(p.Amount)
	}
	return sum
}

// Price is the implied probability of side, for display only. An empty market
// prices both sides at one half.
func Price(yesPool, noPool int64, side Side) decimal.Decimal {
	total := yesPool + noPool
	if total == 0 {
		return decimal.NewFromFloat(0.5)
	}
	pool := yesPool
	if side == No {
		pool = noPool
	}
	return decimal.NewFromInt(pool).DivRound(decimal.NewFromInt(total), 4)
}
