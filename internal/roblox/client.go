// Package roblox implements the outbound client for the four Roblox services
// the proxy aggregates: identity resolution, presence, public server listing
// and thumbnails. Every call carries the same header set and, when a session
// credential is configured, the .ROBLOSECURITY cookie.
package roblox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	userAgent       = "RobloxPlayerFinder/1.0"
	defaultTimeout  = 30 * time.Second
	serverPageLimit = 100
)

// Sentinel errors for empty upstream results. Everything else surfaces as a
// wrapped transport error or a *StatusError.
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrThumbnailNotFound = errors.New("thumbnail not found")
	ErrNoPresence        = errors.New("no presence returned")
)

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	StatusCode int
	Method     string
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("upstream %s %s returned %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("upstream %s %s returned %d", e.Method, e.URL, e.StatusCode)
}

// Endpoints holds the base URLs of the four upstream services.
type Endpoints struct {
	Users      string
	Presence   string
	Games      string
	Thumbnails string
}

// Client issues calls against the Roblox REST services.
type Client struct {
	httpClient *http.Client
	endpoints  Endpoints
	security   string
}

// NewClient constructs a Client. security is the optional .ROBLOSECURITY
// cookie value; httpClient may be nil for the default.
func NewClient(endpoints Endpoints, security string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		httpClient: httpClient,
		endpoints:  endpoints,
		security:   security,
	}
}

// ResolveUsername resolves a username to a player identity. Returns
// ErrUserNotFound when the upstream reports no such user.
func (c *Client) ResolveUsername(ctx context.Context, username string) (UserInfo, error) {
	body := usernamesRequest{Usernames: []string{username}, ExcludeBannedUsers: false}
	var result usernamesResponse
	if err := c.doRequest(ctx, http.MethodPost, c.endpoints.Users+"/v1/usernames/users", body, &result); err != nil {
		return UserInfo{}, err
	}
	if len(result.Data) == 0 {
		return UserInfo{}, ErrUserNotFound
	}
	return result.Data[0], nil
}

// UserPresences fetches presence records for the given userIds, returning
// the userPresences payload exactly as the upstream produced it.
func (c *Client) UserPresences(ctx context.Context, userIDs []int64) (json.RawMessage, error) {
	var result presenceResponse
	if err := c.doRequest(ctx, http.MethodPost, c.endpoints.Presence+"/v1/presence/users", presenceRequest{UserIDs: userIDs}, &result); err != nil {
		return nil, err
	}
	return result.UserPresences, nil
}

// FirstPresence fetches and decodes the presence record for a single player.
func (c *Client) FirstPresence(ctx context.Context, userID int64) (Presence, error) {
	raw, err := c.UserPresences(ctx, []int64{userID})
	if err != nil {
		return Presence{}, err
	}
	var presences []Presence
	if errUnmarshal := json.Unmarshal(raw, &presences); errUnmarshal != nil {
		return Presence{}, fmt.Errorf("decode presence payload: %w", errUnmarshal)
	}
	if len(presences) == 0 {
		return Presence{}, ErrNoPresence
	}
	return presences[0], nil
}

// PublicServers fetches one page of the public server listing for a place.
// cursor is the continuation token from the previous page, empty for the
// first page.
func (c *Client) PublicServers(ctx context.Context, placeID int64, cursor string) (ServerPage, error) {
	endpoint := fmt.Sprintf("%s/v1/games/%d/servers/Public?limit=%d", c.endpoints.Games, placeID, serverPageLimit)
	if cursor != "" {
		endpoint += "&cursor=" + url.QueryEscape(cursor)
	}
	var result serversResponse
	if err := c.doRequest(ctx, http.MethodGet, endpoint, nil, &result); err != nil {
		return ServerPage{}, err
	}
	return ServerPage{Servers: result.Data, NextPageCursor: result.NextPageCursor}, nil
}

// AvatarThumbnail fetches the image URL for a player's avatar render.
// thumbType selects the full avatar or the head-only crop. Returns
// ErrThumbnailNotFound when the upstream produces no result.
func (c *Client) AvatarThumbnail(ctx context.Context, userID int64, size, thumbType string) (string, error) {
	path := "/v1/users/avatar"
	if thumbType != "avatar" {
		path = "/v1/users/avatar-headshot"
	}
	query := url.Values{
		"userIds": {strconv.FormatInt(userID, 10)},
		"size":    {size},
		"format":  {"Png"},
	}
	endpoint := c.endpoints.Thumbnails + path + "?" + query.Encode()

	var result thumbnailsResponse
	if err := c.doRequest(ctx, http.MethodGet, endpoint, nil, &result); err != nil {
		return "", err
	}
	if len(result.Data) == 0 {
		return "", ErrThumbnailNotFound
	}
	return result.Data[0].ImageURL, nil
}

func (c *Client) doRequest(ctx context.Context, method, endpoint string, body, result any) error {
	var reqBody io.Reader
	if body != nil {
		jsonData, errMarshal := json.Marshal(body)
		if errMarshal != nil {
			return fmt.Errorf("marshal request body for %s %s: %w", method, endpoint, errMarshal)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, errNew := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if errNew != nil {
		return fmt.Errorf("create %s request for %s: %w", method, endpoint, errNew)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if c.security != "" {
		req.Header.Set("Cookie", ".ROBLOSECURITY="+c.security)
	}

	resp, errDo := c.httpClient.Do(req)
	if errDo != nil {
		return fmt.Errorf("send %s request to %s: %w", method, endpoint, errDo)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &StatusError{StatusCode: resp.StatusCode, Method: method, URL: endpoint}
		if bodyBytes, errRead := io.ReadAll(io.LimitReader(resp.Body, 512)); errRead == nil {
			statusErr.Body = string(bytes.TrimSpace(bodyBytes))
		}
		return statusErr
	}

	if result != nil {
		if errDecode := json.NewDecoder(resp.Body).Decode(result); errDecode != nil {
			return fmt.Errorf("decode %s response from %s: %w", method, endpoint, errDecode)
		}
	}
	return nil
}
