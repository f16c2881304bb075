package session

// IsFriend reports whether the two users share an accepted friendship.
// The check is symmetric.
func (s *Session) IsFriend(a, b string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isFriendLocked(a, b)
}

func (s *Session) isFriendLocked(a, b string) bool {
	_, ok := s.friendships[relationKey(a, b)]
	return ok
}

// hasPendingLocked reports a pending request between the pair in either
// direction.
func (s *Session) hasPendingLocked(a, b string) bool {
	for _, r := range s.requests {
		if r.Status != RequestStatusPending {
			continue
		}
		if (r.From == a && r.To == b) || (r.From == b && r.To == a) {
			return true
		}
	}
	return false
}

// SendFriendRequest records a pending request from the active user to
// targetID. An existing friendship or a pending request in either
// direction makes this a no-op; the sentinel says which.
func (s *Session) SendFriendRequest(targetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !ValidUserID(targetID) {
		return ErrInvalidUserID
	}
	if _, ok := s.directory[targetID]; !ok {
		return ErrUserNotFound
	}
	if s.isFriendLocked(s.user.ID, targetID) {
		return ErrAlreadyFriends
	}
	if s.hasPendingLocked(s.user.ID, targetID) {
		return ErrRequestPending
	}

	s.requests = append(s.requests, FriendRequest{
		From:   s.user.ID,
		To:     targetID,
		Status: RequestStatusPending,
	})
	s.logger.Info("friend request sent", "from", s.user.ID, "to", targetID)
	return nil
}

// IncomingRequests lists pending requests addressed to userID, oldest
// first.
func (s *Session) IncomingRequests(userID string) []FriendRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []FriendRequest
	for _, r := range s.requests {
		if r.Status == RequestStatusPending && r.To == userID {
			out = append(out, r)
		}
	}
	return out
}

// ConfirmFriend accepts the pending request from fromID to toID: the
// request flips to accepted, the friendship is recorded, and a chat with
// the accepted counterpart opens, seeded with a greeting exchange. If an
// open chat with that counterpart already exists it is reused instead of
// duplicated. Without a matching pending request nothing changes and
// ErrNoPendingRequest is returned; accepting twice is therefore a no-op.
func (s *Session) ConfirmFriend(fromID, toID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, r := range s.requests {
		if r.Status == RequestStatusPending && r.From == fromID && r.To == toID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return "", ErrNoPendingRequest
	}

	s.requests[idx].Status = RequestStatusAccepted
	s.friendships[relationKey(fromID, toID)] = struct{}{}

	if existing := s.chatByCounterpartLocked(toID); existing != nil {
		s.activeChatID = existing.ID
		return existing.ID, nil
	}

	counterpart, ok := s.directory[toID]
	if !ok {
		counterpart = User{ID: toID, Name: toID}
	}

	now := s.displayTime()
	chat := &Chat{
		ID:            newID(),
		CounterpartID: toID,
		Name:          counterpart.Name,
		Time:          now,
		LastMessage:   "You are now friends. Say hi!",
		Messages: []Message{
			{
				ID:   newID(),
				Text: "Hi " + firstNameToken(counterpart.Name) + ", nice to meet you!",
				Type: MessageTypeSent,
				Time: now,
				Sync: SyncConfirmed,
			},
			{
				ID:   newID(),
				Text: "Hi! Great to meet you too.",
				Type: MessageTypeReceived,
				Time: now,
				Sync: SyncConfirmed,
			},
		},
	}
	s.chats = append(s.chats, chat)
	s.activeChatID = chat.ID

	s.logger.Info("friend request accepted", "from", fromID, "to", toID, "chatID", chat.ID)
	return chat.ID, nil
}
