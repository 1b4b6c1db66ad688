package store

// GetState returns the caller, every market, the caller's bets and the most
// recent chat. Clients use it to resync after reconnecting and to learn their
// balance after a resolution.
func (s *Store) GetState(token string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.validate(token, s.now())
	if err != nil {
		return State{}, err
	}
	stats, err := s.journal.statistic(user.ID)
	if err != nil {
		return State{}, err
	}

	state := State{
		User:    *user,
		Stats:   stats,
		Markets: make([]Market, 0, len(s.marketOrder)),
		Bets:    []Bet{},
	}
	for _, id := range s.marketOrder {
		state.Markets = append(state.Markets, *s.markets[id])
	}
	for _, b := range s.bets {
		if b.UserID == user.ID {
			state.Bets = append(state.Bets, *b)
		}
	}
	from := len(s.chat) - s.opts.ChatStateWindow
	if from < 0 {
		from = 0
	}
	state.Chat = append([]ChatMessage{}, s.chat[from:]...)
	return state, nil
}
