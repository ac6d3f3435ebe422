package session

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
	DeviceLabel  string `json:"device_label,omitempty" validate:"omitempty,max=128"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token,omitempty"`
}

type SessionView struct {
	TokenID       string `json:"token_id"`
	Kind          string `json:"kind"`
	DeviceLabel   string `json:"device_label,omitempty"`
	UserAgent     string `json:"user_agent,omitempty"`
	SourceAddress string `json:"source_address,omitempty"`
	CreatedAt     string `json:"created_at"`
	ExpiresAt     string `json:"expires_at"`
	Current       bool   `json:"current"`
}
