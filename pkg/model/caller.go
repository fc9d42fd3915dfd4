package model

// Caller is the authenticated identity making a request.
type Caller struct {
	UserID string
	Email  string
}

func (c Caller) IsZero() bool {
	return c.UserID == ""
}
