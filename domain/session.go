package domain

// Session is the authenticated identity persisted on the device.
// Authenticated implies a non-empty UserID; both are written and cleared together.
type Session struct {
	UserID        ID      `json:"user_id"`
	Authenticated bool    `json:"authenticated"`
	Profile       Profile `json:"profile"`
}

// Valid reports whether the session satisfies its invariant and can be used
// to resolve the current citizen.
func (s *Session) Valid() bool {
	return s != nil && s.Authenticated && !s.UserID.IsZero()
}
