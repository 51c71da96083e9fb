package platform

import (
	"errors"
	"time"
)

// HeldRole is one role the platform reports a user as carrying inside a
// guild.
type HeldRole struct {
	RoleID  string `json:"role_id"`
	GuildID string `json:"guild_id"`
}

type RoleGrantRequest struct {
	GuildID string `json:"guild_id"`
	UserID  string `json:"user_id"`
	RoleID  string `json:"role_id"`
}

func (r *RoleGrantRequest) Validate() error {
	if r.GuildID == "" {
		return errors.New("guild_id is required")
	}
	if r.UserID == "" {
		return errors.New("user_id is required")
	}
	if r.RoleID == "" {
		return errors.New("role_id is required")
	}
	return nil
}

type RoleRevokeRequest struct {
	GuildID string `json:"guild_id"`
	UserID  string `json:"user_id"`
	RoleID  string `json:"role_id"`
}

func (r *RoleRevokeRequest) Validate() error {
	if r.GuildID == "" {
		return errors.New("guild_id is required")
	}
	if r.UserID == "" {
		return errors.New("user_id is required")
	}
	if r.RoleID == "" {
		return errors.New("role_id is required")
	}
	return nil
}

type MemberRolesData struct {
	UserID  string   `json:"user_id"`
	GuildID string   `json:"guild_id"`
	RoleIDs []string `json:"role_ids"`
}

type MemberRolesResponse struct {
	Data MemberRolesData `json:"data"`
}

// RoleChangeEvent is the inbound webhook payload the platform posts when a
// user's roles change outside the roster. EventID deduplicates redeliveries;
// RoleIDs is the full set held after the change, not a delta.
type RoleChangeEvent struct {
	EventID    string    `json:"event_id"`
	GuildID    string    `json:"guild_id"`
	UserID     string    `json:"user_id"`
	RoleIDs    []string  `json:"role_ids"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (e *RoleChangeEvent) Validate() error {
	if e.EventID == "" {
		return errors.New("event_id is required")
	}
	if e.GuildID == "" {
		return errors.New("guild_id is required")
	}
	if e.UserID == "" {
		return errors.New("user_id is required")
	}
	return nil
}
