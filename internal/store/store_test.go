package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	sync.Mutex
	events []Event
}

func (r *recorder) Publish(e Event) {
	r.Lock()
	defer r.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) last() Event {
	r.Lock()
	defer r.Unlock()
	if len(r.events) == 0 {
		return Event{}
	}
	return r.events[len(r.events)-1]
}

func (r *recorder) count() int {
	r.Lock()
	defer r.Unlock()
	return len(r.events)
}

type clock struct {
	sync.Mutex
	t time.Time
}

func (c *clock) Now() time.Time {
	c.Lock()
	defer c.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.Lock()
	defer c.Unlock()
	c.t = c.t.Add(d)
}

func newTestStore(t *testing.T) (*Store, *recorder, *clock) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	rec := &recorder{}
	clk := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	opts := DefaultOptions()
	opts.Clock = clk.Now
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	s, err := New(ctx, logger, rec, opts)
	require.NoError(t, err)
	return s, rec, clk
}

func register(t *testing.T, s *Store, name string) (User, string) {
	t.Helper()
	user, token, err := s.Register("conn-"+name, name, "ALPHA2026")
	require.NoError(t, err)
	return user, token
}

func balance(t *testing.T, s *Store, token string) decimal.Decimal {
	t.Helper()
	state, err := s.GetState(token)
	require.NoError(t, err)
	return state.User.Balance
}

func TestRegister(t *testing.T) {
	s, rec, _ := newTestStore(t)
	_, _, err := s.Register("conn-0", "Alice", "ALPHA2026")
	require.NoError(t, err)

	testCases := []struct {
		name     string
		username string
		invite   string
		err      error
	}{
		{name: "Valid", username: "Bob", invite: "BETA2026"},
		{name: "Empty username", username: "  ", invite: "BETA2026", err: ErrInvalidInput},
		{name: "Empty invite", username: "Carol", invite: "", err: ErrInvalidInput},
		{name: "Unknown invite", username: "Carol", invite: "OMEGA", err: ErrInvalidInvite},
		{name: "Name differs only in case", username: "aLICE", invite: "GAMMA2026", err: ErrUsernameTaken},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			before := rec.count()
			user, token, err := s.Register("conn-1", testCase.username, testCase.invite)
			if testCase.err != nil {
				assert.ErrorIs(t, err, testCase.err)
				assert.Equal(t, before, rec.count())
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, token)
			assert.Equal(t, "1000", user.Balance.String())
			ev := rec.last()
			assert.Equal(t, EventUserJoined, ev.Type)
			assert.Equal(t, "conn-1", ev.Except)
			assert.Equal(t, testCase.username, ev.Payload.(Presence).Username)
		})
	}
}

func TestRegisterAllocatesSequentialIDs(t *testing.T) {
	s, _, _ := newTestStore(t)
	alice, _ := register(t, s, "alice")
	bob, _ := register(t, s, "bob")
	assert.Equal(t, "user1", alice.ID)
	assert.Equal(t, "user2", bob.ID)
}

func TestLogin(t *testing.T) {
	s, rec, _ := newTestStore(t)
	alice, first := register(t, s, "Alice")

	_, _, err := s.Login("conn-2", "nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)
	_, _, err = s.Login("conn-2", "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	user, second, err := s.Login("conn-2", "ALICE")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, user.ID)
	assert.NotEqual(t, first, second)
	assert.Equal(t, "conn-2", rec.last().Except)

	// Both sessions stay valid.
	for _, token := range []string{first, second} {
		id, err := s.Validate(token)
		require.NoError(t, err)
		assert.Equal(t, alice.ID, id)
	}
}

func TestSessionExpiry(t *testing.T) {
	s, _, clk := newTestStore(t)
	_, token := register(t, s, "alice")
	market, err := s.CreateMarket(token, "Will it rain?", time.Time{})
	require.NoError(t, err)

	clk.Advance(24 * time.Hour)
	_, err = s.Validate(token)
	require.NoError(t, err)

	clk.Advance(time.Millisecond)
	_, err = s.CreateMarket(token, "Too late?", time.Time{})
	assert.ErrorIs(t, err, ErrSessionInvalid)
	_, _, _, err = s.PlaceBet(token, market.ID, "yes", decimal.NewFromInt(10))
	assert.ErrorIs(t, err, ErrSessionInvalid)
	_, err = s.ResolveMarket(token, market.ID, "yes")
	assert.ErrorIs(t, err, ErrSessionInvalid)
	_, err = s.SendMessage(token, "hi")
	assert.ErrorIs(t, err, ErrSessionInvalid)
	_, err = s.GetState(token)
	assert.ErrorIs(t, err, ErrSessionInvalid)

	assert.Equal(t, 1, s.SweepSessions())
	_, err = s.Validate("")
	assert.ErrorIs(t, err, ErrSessionInvalid)
}

func TestCreateMarket(t *testing.T) {
	s, rec, clk := newTestStore(t)
	alice, token := register(t, s, "alice")

	_, err := s.CreateMarket(token, "   ", time.Time{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	market, err := s.CreateMarket(token, "Will it rain?", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "market1", market.ID)
	assert.Equal(t, alice.ID, market.CreatorID)
	assert.Equal(t, "alice", market.CreatorName)
	assert.Equal(t, clk.Now().Add(7*24*time.Hour), market.CloseAt)
	assert.False(t, market.Resolved)
	assert.Equal(t, Side(""), market.Outcome)
	assert.Zero(t, market.YesPool+market.NoPool)

	ev := rec.last()
	assert.Equal(t, EventMarketCreated, ev.Type)
	assert.Empty(t, ev.Except)
	assert.Equal(t, market, ev.Payload.(Market))

	closeAt := clk.Now().Add(-time.Hour)
	past, err := s.CreateMarket(token, "Already closed?", closeAt)
	require.NoError(t, err)
	assert.Equal(t, closeAt, past.CloseAt)

	// Close time is advisory.
	_, _, _, err = s.PlaceBet(token, past.ID, "no", decimal.NewFromInt(5))
	assert.NoError(t, err)
}

func TestPlaceBetErrors(t *testing.T) {
	s, _, _ := newTestStore(t)
	_, alice := register(t, s, "alice")
	open, err := s.CreateMarket(alice, "Open?", time.Time{})
	require.NoError(t, err)
	closed, err := s.CreateMarket(alice, "Closed?", time.Time{})
	require.NoError(t, err)
	_, err = s.ResolveMarket(alice, closed.ID, "no")
	require.NoError(t, err)

	testCases := []struct {
		name     string
		token    string
		marketID string
		side     string
		amount   decimal.Decimal
		err      error
	}{
		{name: "Bad session beats everything", token: "nope", marketID: "missing", side: "maybe", amount: decimal.Zero, err: ErrSessionInvalid},
		{name: "Unknown market", token: alice, marketID: "missing", side: "yes", amount: decimal.Zero, err: ErrMarketNotFound},
		{name: "Resolved market", token: alice, marketID: closed.ID, side: "yes", amount: decimal.Zero, err: ErrMarketResolved},
		{name: "Zero amount", token: alice, marketID: open.ID, side: "yes", amount: decimal.Zero, err: ErrInvalidAmount},
		{name: "Negative amount", token: alice, marketID: open.ID, side: "yes", amount: decimal.NewFromInt(-5), err: ErrInvalidAmount},
		{name: "Fractional amount", token: alice, marketID: open.ID, side: "yes", amount: decimal.RequireFromString("1.5"), err: ErrInvalidAmount},
		{name: "Huge exponent", token: alice, marketID: open.ID, side: "yes", amount: decimal.RequireFromString("1e99999999"), err: ErrInvalidAmount},
		{name: "Tiny exponent", token: alice, marketID: open.ID, side: "yes", amount: decimal.RequireFromString("1e-99999999"), err: ErrInvalidAmount},
		{name: "Beyond int64", token: alice, marketID: open.ID, side: "yes", amount: decimal.RequireFromString("9223372036854775808"), err: ErrInvalidAmount},
		{name: "More than balance", token: alice, marketID: open.ID, side: "yes", amount: decimal.NewFromInt(1001), err: ErrInsufficientBalance},
		{name: "Unknown side", token: alice, marketID: open.ID, side: "maybe", amount: decimal.NewFromInt(1), err: ErrInvalidInput},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			_, _, _, err := s.PlaceBet(testCase.token, testCase.marketID, testCase.side, testCase.amount)
			assert.ErrorIs(t, err, testCase.err)
		})
	}

	assert.Equal(t, "1000", balance(t, s, alice).String())
}

func TestPlaceBet(t *testing.T) {
	s, rec, _ := newTestStore(t)
	_, alice := register(t, s, "alice")
	bobUser, bob := register(t, s, "bob")
	market, err := s.CreateMarket(alice, "Will it rain?", time.Time{})
	require.NoError(t, err)

	bets := []struct {
		token  string
		side   string
		amount int64
	}{
		{alice, "yes", 100},
		{bob, "NO", 250},
		{bob, "yes", 40},
		{alice, "no", 1},
	}
	var placed int64
	for _, b := range bets {
		_, m, _, err := s.PlaceBet(b.token, market.ID, b.side, decimal.NewFromInt(b.amount))
		require.NoError(t, err)
		placed += b.amount
		assert.Equal(t, placed, m.YesPool+m.NoPool)
	}

	bet, m, newBalance, err := s.PlaceBet(bob, market.ID, "yes", decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.Equal(t, "bet5", bet.ID)
	assert.Equal(t, int64(10), bet.Shares)
	assert.Equal(t, Yes, bet.Side)
	assert.Equal(t, int64(150), m.YesPool)
	assert.Equal(t, int64(251), m.NoPool)
	assert.Equal(t, m.YesPool, m.YesShares)
	assert.Equal(t, "700", newBalance.String())
	assert.Equal(t, "899", balance(t, s, alice).String())

	ev := rec.last()
	assert.Equal(t, EventBetPlaced, ev.Type)
	payload := ev.Payload.(BetPlaced)
	assert.Equal(t, bobUser.ID, payload.UserID)
	assert.Equal(t, bet, payload.Bet)
	assert.Equal(t, m, payload.Market)
	assert.True(t, newBalance.Equal(payload.NewBalance))

	// A whole balance can be staked, leaving zero.
	_, _, newBalance, err = s.PlaceBet(bob, market.ID, "no", decimal.NewFromInt(700))
	require.NoError(t, err)
	assert.True(t, newBalance.IsZero())
	_, _, _, err = s.PlaceBet(bob, market.ID, "no", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestResolveMarketPayout(t *testing.T) {
	s, rec, _ := newTestStore(t)
	_, creator := register(t, s, "creator")
	_, alice := register(t, s, "alice")
	_, bob := register(t, s, "bob")
	_, carol := register(t, s, "carol")
	market, err := s.CreateMarket(creator, "Will it rain?", time.Time{})
	require.NoError(t, err)

	for _, b := range []struct {
		token  string
		side   string
		amount int64
	}{
		{alice, "yes", 100},
		{bob, "yes", 200},
		{carol, "no", 700},
	} {
		_, _, _, err := s.PlaceBet(b.token, market.ID, b.side, decimal.NewFromInt(b.amount))
		require.NoError(t, err)
	}

	resolved, err := s.ResolveMarket(creator, market.ID, "yes")
	require.NoError(t, err)
	assert.True(t, resolved.Resolved)
	assert.Equal(t, Yes, resolved.Outcome)
	assert.False(t, resolved.ResolvedAt.IsZero())
	assert.Equal(t, EventMarketResolved, rec.last().Type)

	// 100/300*1000 and 200/300*1000, with the odd cent going to the larger remainder.
	assert.Equal(t, "1233.33", balance(t, s, alice).StringFixed(2))
	assert.Equal(t, "1466.67", balance(t, s, bob).StringFixed(2))
	assert.Equal(t, "300.00", balance(t, s, carol).StringFixed(2))

	total := decimal.Zero
	for _, token := range []string{creator, alice, bob, carol} {
		total = total.Add(balance(t, s, token))
	}
	assert.Equal(t, "4000", total.String())

	state, err := s.GetState(bob)
	require.NoError(t, err)
	assert.Equal(t, 1, state.Stats.BetCount)
	assert.Equal(t, "200", state.Stats.BetSum.String())
	assert.Equal(t, 1, state.Stats.WinCount)
	assert.Equal(t, "666.67", state.Stats.WinSum.String())
}

func TestResolveMarketErrors(t *testing.T) {
	s, rec, _ := newTestStore(t)
	_, creator := register(t, s, "creator")
	_, other := register(t, s, "other")
	market, err := s.CreateMarket(creator, "Will it rain?", time.Time{})
	require.NoError(t, err)
	_, _, _, err = s.PlaceBet(other, market.ID, "no", decimal.NewFromInt(100))
	require.NoError(t, err)

	testCases := []struct {
		name     string
		token    string
		marketID string
		outcome  string
		err      error
	}{
		{name: "Bad session", token: "nope", marketID: market.ID, outcome: "yes", err: ErrSessionInvalid},
		{name: "Unknown market", token: creator, marketID: "market99", outcome: "yes", err: ErrMarketNotFound},
		{name: "Not the creator", token: other, marketID: market.ID, outcome: "bogus", err: ErrNotCreator},
		{name: "Invalid outcome", token: creator, marketID: market.ID, outcome: "maybe", err: ErrInvalidOutcome},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			_, err := s.ResolveMarket(testCase.token, testCase.marketID, testCase.outcome)
			assert.ErrorIs(t, err, testCase.err)
		})
	}

	_, err = s.ResolveMarket(creator, market.ID, "no")
	require.NoError(t, err)
	events := rec.count()
	paid := balance(t, s, other)
	assert.Equal(t, "1000", paid.String())

	for _, outcome := range []string{"no", "yes", "maybe"} {
		_, err = s.ResolveMarket(creator, market.ID, outcome)
		assert.ErrorIs(t, err, ErrMarketResolved)
	}
	assert.True(t, paid.Equal(balance(t, s, other)))
	assert.Equal(t, events, rec.count())
}

func TestResolveWithEmptyWinningPool(t *testing.T) {
	s, _, _ := newTestStore(t)
	_, creator := register(t, s, "creator")
	_, alice := register(t, s, "alice")
	market, err := s.CreateMarket(creator, "Will it rain?", time.Time{})
	require.NoError(t, err)
	_, _, _, err = s.PlaceBet(alice, market.ID, "no", decimal.NewFromInt(250))
	require.NoError(t, err)

	resolved, err := s.ResolveMarket(creator, market.ID, "yes")
	require.NoError(t, err)
	assert.True(t, resolved.Resolved)
	assert.Equal(t, Yes, resolved.Outcome)
	assert.Equal(t, "750", balance(t, s, alice).String())
	assert.Equal(t, "1000", balance(t, s, creator).String())

	summary, err := s.Summary()
	require.NoError(t, err)
	assert.Equal(t, "250", summary.Forfeited.String())
	assert.Equal(t, 2, summary.Users)
	assert.Equal(t, 1, summary.Markets)
}

func TestConcurrentBets(t *testing.T) {
	s, _, _ := newTestStore(t)
	_, creator := register(t, s, "creator")
	market, err := s.CreateMarket(creator, "Will it rain?", time.Time{})
	require.NoError(t, err)

	const bettors = 8
	const perBettor = 25
	tokens := make([]string, bettors)
	for i := range tokens {
		_, tokens[i] = register(t, s, fmt.Sprintf("bettor%d", i))
	}

	var wg sync.WaitGroup
	for i, token := range tokens {
		wg.Add(1)
		go func(i int, token string) {
			defer wg.Done()
			side := "yes"
			if i%2 == 1 {
				side = "no"
			}
			for n := 0; n < perBettor; n++ {
				_, _, _, err := s.PlaceBet(token, market.ID, side, decimal.NewFromInt(2))
				assert.NoError(t, err)
			}
		}(i, token)
	}
	wg.Wait()

	state, err := s.GetState(creator)
	require.NoError(t, err)
	m := state.Markets[0]
	assert.Equal(t, int64(bettors*perBettor*2), m.YesPool+m.NoPool)
	assert.Equal(t, m.YesPool, m.NoPool)
	for _, token := range tokens {
		state, err := s.GetState(token)
		require.NoError(t, err)
		assert.Len(t, state.Bets, perBettor)
		assert.Equal(t, "950", state.User.Balance.String())
	}
}

func TestChat(t *testing.T) {
	s, rec, _ := newTestStore(t)
	_, token := register(t, s, "alice")

	_, err := s.SendMessage("nope", "hello")
	assert.ErrorIs(t, err, ErrSessionInvalid)

	for i := 0; i < 130; i++ {
		msg, err := s.SendMessage(token, fmt.Sprintf("message %d", i))
		require.NoError(t, err)
		assert.Equal(t, "alice", msg.Username)
	}
	assert.Equal(t, EventChatMessage, rec.last().Type)

	s.mu.Lock()
	stored := len(s.chat)
	oldest := s.chat[0].Text
	s.mu.Unlock()
	assert.Equal(t, 100, stored)
	assert.Equal(t, "message 30", oldest)

	state, err := s.GetState(token)
	require.NoError(t, err)
	require.Len(t, state.Chat, 50)
	assert.Equal(t, "message 80", state.Chat[0].Text)
	assert.Equal(t, "message 129", state.Chat[49].Text)
}

func TestGetState(t *testing.T) {
	s, _, _ := newTestStore(t)
	alice, aliceToken := register(t, s, "alice")
	_, bobToken := register(t, s, "bob")
	first, err := s.CreateMarket(aliceToken, "First?", time.Time{})
	require.NoError(t, err)
	second, err := s.CreateMarket(bobToken, "Second?", time.Time{})
	require.NoError(t, err)
	_, _, _, err = s.PlaceBet(aliceToken, second.ID, "yes", decimal.NewFromInt(10))
	require.NoError(t, err)
	_, _, _, err = s.PlaceBet(bobToken, first.ID, "no", decimal.NewFromInt(20))
	require.NoError(t, err)

	state, err := s.GetState(aliceToken)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, state.User.ID)
	assert.Equal(t, "990", state.User.Balance.String())
	require.Len(t, state.Markets, 2)
	assert.Equal(t, first.ID, state.Markets[0].ID)
	assert.Equal(t, second.ID, state.Markets[1].ID)
	require.Len(t, state.Bets, 1)
	assert.Equal(t, second.ID, state.Bets[0].MarketID)
	assert.Empty(t, state.Chat)
}

func TestLeave(t *testing.T) {
	s, rec, clk := newTestStore(t)
	register(t, s, "alice")

	before := rec.count()
	s.Leave("conn-x", "nobody")
	assert.Equal(t, before, rec.count())

	s.Leave("conn-x", "alice")
	ev := rec.last()
	assert.Equal(t, EventUserLeft, ev.Type)
	assert.Equal(t, "conn-x", ev.Except)
	assert.Equal(t, "alice", ev.Payload.(Presence).Username)

	// A swept session still gets its departure announced.
	clk.Advance(25 * time.Hour)
	assert.Equal(t, 1, s.SweepSessions())
	s.Leave("conn-y", "alice")
	assert.Equal(t, before+2, rec.count())
	assert.Equal(t, "alice", rec.last().Payload.(Presence).Username)
}

func TestReopenFileJournal(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	opts := DefaultOptions()
	opts.JournalDSN = filepath.Join(t.TempDir(), "journal.db")

	ctx, cancel := context.WithCancel(context.Background())
	first, err := New(ctx, logger, nil, opts)
	require.NoError(t, err)
	_, _, err = first.Register("conn-1", "alice", "ALPHA2026")
	require.NoError(t, err)
	cancel()

	ctx, cancel = context.WithCancel(context.Background())
	defer cancel()
	second, err := New(ctx, logger, nil, opts)
	require.NoError(t, err)
	user, token, err := second.Register("conn-2", "bob", "ALPHA2026")
	require.NoError(t, err)
	assert.Equal(t, "user1", user.ID)

	summary, err := second.Summary()
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Users)
	state, err := second.GetState(token)
	require.NoError(t, err)
	assert.Equal(t, 0, state.Stats.BetCount)
}

func TestCode(t *testing.T) {
	assert.Equal(t, "SessionInvalid", Code(&ValidationError{Err: ErrSessionInvalid}))
	assert.Equal(t, "InvalidInput", Code(invalidInput("question is required")))
	assert.Equal(t, "MarketNotFound", Code(&NotFoundError{Err: ErrMarketNotFound}))
	assert.Equal(t, "Internal", Code(&InternalError{Message: "boom", Err: fmt.Errorf("disk")}))
	assert.True(t, IsInternal(&TransactionError{Err: fmt.Errorf("locked")}))
	assert.False(t, IsInternal(&ValidationError{Err: ErrInvalidAmount}))
}
