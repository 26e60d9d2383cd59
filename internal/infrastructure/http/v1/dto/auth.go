package dto

import (
	"time"

	"voltstock/internal/domain/audit"
)

// DevTokenRequest asks for a token for an existing user.
type DevTokenRequest struct {
	UserID string `json:"userId" binding:"required"`
}

// TokenResponse carries a signed access token.
type TokenResponse struct {
	AccessToken string    `json:"accessToken"`
	TokenType   string    `json:"tokenType"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// AuditEntryResponse is one audit record.
type AuditEntryResponse struct {
	Action    string         `json:"action"`
	ActorID   string         `json:"actorId"`
	ActorRole string         `json:"actorRole"`
	Changes   map[string]any `json:"changes,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// FromAuditEntries maps audit entries.
func FromAuditEntries(entries []audit.Entry) []AuditEntryResponse {
	out := make([]AuditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, AuditEntryResponse{
			Action:    string(e.Action),
			ActorID:   e.ActorID,
			ActorRole: e.ActorRole,
			Changes:   e.Changes,
			CreatedAt: e.CreatedAt,
		})
	}
	return out
}
