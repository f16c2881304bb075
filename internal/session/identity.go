package session

const (
	defaultUserID   = "100001"
	defaultUserName = "You"
)

// ResolveOptions carries the launch context the resolver inspects. UserID
// is the explicit candidate (the ?userId= launch parameter).
type ResolveOptions struct {
	UserID string
}

// resolveIdentityLocked picks the active user with a strict precedence:
// a valid explicit candidate wins, then a device-persisted ID that is
// still known to the directory, then the built-in default. An explicit
// candidate that is absent from the directory gets a placeholder profile
// rather than being rejected.
func (s *Session) resolveIdentityLocked(opts ResolveOptions) User {
	if ValidUserID(opts.UserID) {
		u, ok := s.directory[opts.UserID]
		if !ok {
			u = User{ID: opts.UserID, Name: "Guest " + opts.UserID}
			s.directory[opts.UserID] = u
		}
		s.user = u
		s.persistUserID(u.ID)
		return u
	}

	if s.devices != nil {
		stored := s.devices.LoadUserID()
		if u, ok := s.directory[stored]; ok {
			s.user = u
			return u
		}
	}

	u, ok := s.directory[defaultUserID]
	if !ok {
		u = User{ID: defaultUserID, Name: defaultUserName}
		s.directory[defaultUserID] = u
	}
	s.user = u
	s.persistUserID(u.ID)
	return u
}

func (s *Session) persistUserID(id string) {
	if s.devices == nil {
		return
	}
	if err := s.devices.SaveUserID(id); err != nil {
		s.logger.Warn("persist user id failed", "error", err, "userID", id)
	}
}
