package domain

// Identity is the authenticated caller as asserted by the auth provider.
type Identity struct {
	UserID string
	Role   string
}

func (i Identity) HasRole(role string) bool {
	return role != "" && i.Role == role
}
