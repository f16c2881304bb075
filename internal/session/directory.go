package session

import "strings"

// SearchOutcome classifies a directory lookup.
type SearchOutcome int

const (
	SearchInvalid SearchOutcome = iota
	SearchNotFound
	SearchFound
)

// ButtonState is the relationship-dependent action a found profile
// offers.
type ButtonState string

const (
	ButtonAddFriend      ButtonState = "add_friend"
	ButtonRequestPending ButtonState = "request_pending"
	ButtonFriends        ButtonState = "friends"
)

type SearchResult struct {
	Outcome SearchOutcome
	User    User
	Button  ButtonState
}

// Search looks up a 6-digit ID in the directory. It never mutates state:
// invalid input and misses only produce a classified result.
func (s *Session) Search(raw string) SearchResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := strings.TrimSpace(raw)
	if !ValidUserID(id) {
		return SearchResult{Outcome: SearchInvalid}
	}

	u, ok := s.directory[id]
	if !ok {
		return SearchResult{Outcome: SearchNotFound}
	}

	return SearchResult{
		Outcome: SearchFound,
		User:    u,
		Button:  s.buttonStateLocked(u.ID),
	}
}

// buttonStateLocked derives the action for a profile relative to the
// active user. A pending request in either direction reads as pending.
func (s *Session) buttonStateLocked(targetID string) ButtonState {
	if s.isFriendLocked(s.user.ID, targetID) {
		return ButtonFriends
	}
	if s.hasPendingLocked(s.user.ID, targetID) {
		return ButtonRequestPending
	}
	return ButtonAddFriend
}
