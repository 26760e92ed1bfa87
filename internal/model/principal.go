package model

// Principal is the authenticated caller of a request. UserID is empty for
// the bootstrap admin signed in with the configured password.
type Principal struct {
	UserID    string
	Role      UserType
	SessionID string
}

func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == UserTypeAdmin
}

func (p *Principal) Is(role UserType) bool {
	return p != nil && p.Role == role
}
