package store

// SendMessage appends to the chat log, keeping only the newest ChatHistory
// messages. The text is not validated.
func (s *Store) SendMessage(token, text string) (ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	user, err := s.validate(token, now)
	if err != nil {
		return ChatMessage{}, err
	}
	msg := ChatMessage{Username: user.Username, Text: text, SentAt: now}
	s.chat = append(s.chat, msg)
	if over := len(s.chat) - s.opts.ChatHistory; over > 0 {
		kept := make([]ChatMessage, s.opts.ChatHistory)
		copy(kept, s.chat[over:])
		s.chat = kept
	}

	s.publisher.Publish(Event{Type: EventChatMessage, Payload: msg})
	return msg, nil
}
