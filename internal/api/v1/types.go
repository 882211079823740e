package apiv1

// Pong defines model for Pong.
type Pong struct {
	Ping string `json:"ping"`
}

// Error defines model for Error.
type Error struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// GetMembershipParams defines parameters for GetMembership.
type GetMembershipParams struct {
	Email string `query:"email"`
}
