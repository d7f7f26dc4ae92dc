package roblox

import "encoding/json"

// Presence type codes reported by the presence service.
const (
	PresenceOffline  = 0
	PresenceOnline   = 1 // online on the website, not in a game
	PresenceInGame   = 2
	PresenceInStudio = 3
)

// UserInfo is a resolved player identity.
type UserInfo struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
}

// usernamesRequest is the identity-resolution request body.
type usernamesRequest struct {
	Usernames          []string `json:"usernames"`
	ExcludeBannedUsers bool     `json:"excludeBannedUsers"`
}

// usernamesResponse wraps the identity-resolution result list.
type usernamesResponse struct {
	Data []UserInfo `json:"data"`
}

// Presence describes a player's current activity. PlaceID is null when the
// player's privacy settings hide the game they are in.
type Presence struct {
	UserPresenceType int    `json:"userPresenceType"`
	LastLocation     string `json:"lastLocation"`
	PlaceID          *int64 `json:"placeId"`
	UserID           int64  `json:"userId"`
}

// presenceRequest is the presence lookup request body.
type presenceRequest struct {
	UserIDs []int64 `json:"userIds"`
}

// presenceResponse keeps the userPresences payload raw so the pass-through
// endpoint returns it verbatim; callers that need fields decode it.
type presenceResponse struct {
	UserPresences json.RawMessage `json:"userPresences"`
}

// Server is the slice of a public server listing entry the scan needs.
type Server struct {
	ID         string  `json:"id"`
	PlayerIDs  []int64 `json:"playerIds"`
	Playing    int     `json:"playing"`
	MaxPlayers int     `json:"maxPlayers"`
	FPS        float64 `json:"fps"`
	Ping       float64 `json:"ping"`
}

// ServerPage is one page of the public server listing. Servers stay raw for
// pass-through fidelity; NextPageCursor is nil when the list is exhausted.
type ServerPage struct {
	Servers        []json.RawMessage
	NextPageCursor *string
}

// serversResponse mirrors the listing API page envelope.
type serversResponse struct {
	Data           []json.RawMessage `json:"data"`
	NextPageCursor *string           `json:"nextPageCursor"`
}

// thumbnailsResponse wraps the thumbnail generation result list.
type thumbnailsResponse struct {
	Data []struct {
		TargetID int64  `json:"targetId"`
		State    string `json:"state"`
		ImageURL string `json:"imageUrl"`
	} `json:"data"`
}
