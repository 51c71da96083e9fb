package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/averhoeven/roster-management/internal"
	platformtypes "github.com/averhoeven/roster-management/internal/core/datamodel/platform"
)

// RoleClient is the surface the synchronizer and reconciliation listener
// need from the identity platform.
type RoleClient interface {
	GrantRole(ctx context.Context, guildID, userID, roleID string) error
	RevokeRole(ctx context.Context, guildID, userID, roleID string) error
	ListRoles(ctx context.Context, guildID, userID string) ([]platformtypes.HeldRole, error)
}

type Config struct {
	BaseURL     string
	BotToken    string
	CallTimeout time.Duration
	MaxRetries  int
}

// Client talks to the identity platform's REST API. Every call carries a
// bounded timeout; transient failures (transport errors, 429, 5xx) are
// retried with a short backoff before giving up.
type Client struct {
	baseURL    string
	botToken   string
	maxRetries int
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(config Config, logger *slog.Logger) *Client {
	callTimeout := config.CallTimeout
	if callTimeout <= 0 {
		callTimeout = 5 * time.Second
	}

	maxRetries := config.MaxRetries
	if maxRetries < 0 {
		maxRetries = 1
	}

	return &Client{
		baseURL:    config.BaseURL,
		botToken:   config.BotToken,
		maxRetries: maxRetries,
		httpClient: &http.Client{Timeout: callTimeout},
		logger:     logger,
	}
}

// GrantRole adds a role to the user's membership in the guild.
func (c *Client) GrantRole(ctx context.Context, guildID, userID, roleID string) error {
	req := &platformtypes.RoleGrantRequest{GuildID: guildID, UserID: userID, RoleID: roleID}
	if err := req.Validate(); err != nil {
		return internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	url := fmt.Sprintf("%s/guilds/%s/members/%s/roles/%s", c.baseURL, guildID, userID, roleID)
	return c.execute(ctx, http.MethodPut, url, "grant role", roleID)
}

// RevokeRole removes a role from the user's membership in the guild.
func (c *Client) RevokeRole(ctx context.Context, guildID, userID, roleID string) error {
	req := &platformtypes.RoleRevokeRequest{GuildID: guildID, UserID: userID, RoleID: roleID}
	if err := req.Validate(); err != nil {
		return internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	url := fmt.Sprintf("%s/guilds/%s/members/%s/roles/%s", c.baseURL, guildID, userID, roleID)
	return c.execute(ctx, http.MethodDelete, url, "revoke role", roleID)
}

// ListRoles fetches every role the user currently holds in the guild.
func (c *Client) ListRoles(ctx context.Context, guildID, userID string) ([]platformtypes.HeldRole, error) {
	url := fmt.Sprintf("%s/guilds/%s/members/%s/roles", c.baseURL, guildID, userID)

	resp, err := c.doWithRetry(ctx, http.MethodGet, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError(resp.StatusCode, "list roles", userID)
	}

	var apiResponse platformtypes.MemberRolesResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return nil, internal.NewExternalSyncError("failed to decode role listing", internal.ErrCodePlatformRejected, err)
	}

	held := make([]platformtypes.HeldRole, 0, len(apiResponse.Data.RoleIDs))
	for _, roleID := range apiResponse.Data.RoleIDs {
		held = append(held, platformtypes.HeldRole{RoleID: roleID, GuildID: apiResponse.Data.GuildID})
	}
	return held, nil
}

func (c *Client) execute(ctx context.Context, method, url, operation, roleID string) error {
	resp, err := c.doWithRetry(ctx, method, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return c.statusError(resp.StatusCode, operation, roleID)
	}

	c.logger.Debug("platform call succeeded",
		"operation", operation,
		"role_id", roleID,
		"status_code", resp.StatusCode)
	return nil
}

// doWithRetry performs the request, retrying transport failures and
// retryable status codes up to maxRetries times. The request body is empty
// for every platform call, so requests are rebuilt per attempt. The
// client's Timeout bounds each attempt including the body read.
func (c *Client) doWithRetry(ctx context.Context, method, url string) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * 500 * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, internal.NewExternalSyncError("identity platform call cancelled", internal.ErrCodePlatformUnreachable, ctx.Err())
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, url, nil)
		if err != nil {
			return nil, internal.NewInternalError("failed to build platform request", err)
		}
		req.Header.Set("Authorization", "Bot "+c.botToken)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			c.logger.Warn("platform call transport failure",
				"method", method,
				"url", url,
				"attempt", attempt,
				"error", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			resp.Body.Close()
			lastErr = fmt.Errorf("platform returned status %d", resp.StatusCode)
			c.logger.Warn("platform call retryable status",
				"method", method,
				"url", url,
				"attempt", attempt,
				"status_code", resp.StatusCode)
			continue
		}

		return resp, nil
	}

	return nil, internal.NewExternalSyncError("identity platform unreachable", internal.ErrCodePlatformUnreachable, lastErr)
}

func (c *Client) statusError(statusCode int, operation, subject string) error {
	c.logger.Error("platform rejected call",
		"operation", operation,
		"subject", subject,
		"status_code", statusCode)
	return internal.NewExternalSyncError(
		fmt.Sprintf("identity platform rejected %s with status %d", operation, statusCode),
		internal.ErrCodePlatformRejected,
		nil,
	)
}
