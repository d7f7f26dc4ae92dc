// Package locator implements the find-player orchestration: resolve the
// username, check presence, then walk the public server listing for the
// place the player is in until the player's userId shows up in a server's
// player set.
package locator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/extrasensor/ProxyServer/internal/roblox"
)

// MaxScannedServers bounds the total number of servers examined across all
// pages. Popular places can list arbitrarily many pages; without a cap a
// single lookup could run for minutes.
const MaxScannedServers = 500

// Status strings disclosed for players who are not in a joinable public
// server.
const (
	StatusOffline       = "Offline"
	StatusOnlineWebsite = "Online (Website)"
	StatusInStudio      = "In Studio"
	StatusUnknown       = "Unknown"
	StatusPrivate       = "In Game (Private)"
	StatusPrivateServer = "In Game (Private Server)"
)

// ServerInfo is the projection of the matched server returned to clients.
type ServerInfo struct {
	Playing    int     `json:"playing"`
	MaxPlayers int     `json:"maxPlayers"`
	FPS        float64 `json:"fps"`
	Ping       float64 `json:"ping"`
}

// Result is the find-player response body. Optional fields are omitted for
// outcomes that do not populate them, matching the original wire shapes.
type Result struct {
	Success     bool        `json:"success"`
	Found       bool        `json:"found"`
	UserID      int64       `json:"userId"`
	Username    string      `json:"username"`
	DisplayName string      `json:"displayName"`
	Status      string      `json:"status,omitempty"`
	PlaceID     int64       `json:"placeId,omitempty"`
	GameName    string      `json:"gameName,omitempty"`
	JobID       string      `json:"jobId,omitempty"`
	ServerInfo  *ServerInfo `json:"serverInfo,omitempty"`
	Error       string      `json:"error,omitempty"`
}

// upstream is the slice of the Roblox client the locator drives.
type upstream interface {
	ResolveUsername(ctx context.Context, username string) (roblox.UserInfo, error)
	FirstPresence(ctx context.Context, userID int64) (roblox.Presence, error)
	PublicServers(ctx context.Context, placeID int64, cursor string) (roblox.ServerPage, error)
}

// Locator finds the live server instance hosting a player.
type Locator struct {
	client  upstream
	maxScan int
}

// New constructs a Locator over the given upstream client.
func New(client upstream) *Locator {
	return &Locator{client: client, maxScan: MaxScannedServers}
}

// Find runs the locate chain for username. roblox.ErrUserNotFound passes
// through for the handler's 404; any other error aborts the whole operation.
// Presence states with no joinable server are successful results carrying a
// disclosure status, not errors.
func (l *Locator) Find(ctx context.Context, username string) (Result, error) {
	user, errResolve := l.client.ResolveUsername(ctx, username)
	if errResolve != nil {
		return Result{}, errResolve
	}

	presence, errPresence := l.client.FirstPresence(ctx, user.ID)
	if errPresence != nil {
		return Result{}, errPresence
	}

	base := Result{
		Success:     true,
		UserID:      user.ID,
		Username:    user.Name,
		DisplayName: user.DisplayName,
	}

	if presence.UserPresenceType != roblox.PresenceInGame {
		base.Status = presenceStatus(presence.UserPresenceType)
		return base, nil
	}
	if presence.PlaceID == nil {
		base.Status = StatusPrivate
		base.Error = "User privacy settings prevent seeing which game they are in"
		return base, nil
	}

	base.PlaceID = *presence.PlaceID
	base.GameName = presence.LastLocation
	if base.GameName == "" {
		base.GameName = "Unknown Game"
	}

	match, scanned, errScan := l.scan(ctx, base.PlaceID, user.ID)
	if errScan != nil {
		return Result{}, errScan
	}
	if match == nil {
		base.Status = StatusPrivateServer
		base.Error = fmt.Sprintf("Scanned %d servers but player not found. They might be in a private/VIP server.", scanned)
		return base, nil
	}

	base.Found = true
	base.JobID = match.ID
	base.ServerInfo = &ServerInfo{
		Playing:    match.Playing,
		MaxPlayers: match.MaxPlayers,
		FPS:        match.FPS,
		Ping:       match.Ping,
	}
	return base, nil
}

// scan walks listing pages sequentially until the player is found, the
// running scanned count reaches the cap, or the cursor runs out. Pages are
// searched in upstream order and the first match wins.
func (l *Locator) scan(ctx context.Context, placeID, userID int64) (*roblox.Server, int, error) {
	cursor := ""
	scanned := 0
	for scanned < l.maxScan {
		page, errPage := l.client.PublicServers(ctx, placeID, cursor)
		if errPage != nil {
			return nil, scanned, errPage
		}

		for _, raw := range page.Servers {
			var server roblox.Server
			if errUnmarshal := json.Unmarshal(raw, &server); errUnmarshal != nil {
				return nil, scanned, fmt.Errorf("decode server listing entry: %w", errUnmarshal)
			}
			if containsID(server.PlayerIDs, userID) {
				return &server, scanned, nil
			}
		}

		scanned += len(page.Servers)
		if page.NextPageCursor == nil || *page.NextPageCursor == "" {
			break
		}
		cursor = *page.NextPageCursor
	}
	return nil, scanned, nil
}

func presenceStatus(presenceType int) string {
	switch presenceType {
	case roblox.PresenceOffline:
		return StatusOffline
	case roblox.PresenceOnline:
		return StatusOnlineWebsite
	case roblox.PresenceInStudio:
		return StatusInStudio
	default:
		return StatusUnknown
	}
}

func containsID(ids []int64, target int64) bool {
	for _, id := range ids {
		if id == target {
			return true
		}
	}
	return false
}
