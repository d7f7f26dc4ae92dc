package locator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/extrasensor/ProxyServer/internal/roblox"
)

type fakeUpstream struct {
	user        roblox.UserInfo
	resolveErr  error
	presence    roblox.Presence
	presenceErr error
	pageFn      func(cursor string) (roblox.ServerPage, error)
	pageCalls   int
}

func (f *fakeUpstream) ResolveUsername(_ context.Context, _ string) (roblox.UserInfo, error) {
	return f.user, f.resolveErr
}

func (f *fakeUpstream) FirstPresence(_ context.Context, _ int64) (roblox.Presence, error) {
	return f.presence, f.presenceErr
}

func (f *fakeUpstream) PublicServers(_ context.Context, _ int64, cursor string) (roblox.ServerPage, error) {
	f.pageCalls++
	return f.pageFn(cursor)
}

func rawServer(t *testing.T, server roblox.Server) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(server)
	if err != nil {
		t.Fatalf("marshal server: %v", err)
	}
	return data
}

func rawPage(t *testing.T, cursor string, servers ...roblox.Server) roblox.ServerPage {
	t.Helper()
	page := roblox.ServerPage{}
	for _, server := range servers {
		page.Servers = append(page.Servers, rawServer(t, server))
	}
	if cursor != "" {
		page.NextPageCursor = &cursor
	}
	return page
}

func placeID(id int64) *int64 { return &id }

func TestFind_UserNotFoundPassesThrough(t *testing.T) {
	l := New(&fakeUpstream{resolveErr: roblox.ErrUserNotFound})
	if _, err := l.Find(context.Background(), "nobody"); !errors.Is(err, roblox.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestFind_PresenceStatusMapping(t *testing.T) {
	cases := []struct {
		presenceType int
		status       string
	}{
		{roblox.PresenceOffline, StatusOffline},
		{roblox.PresenceOnline, StatusOnlineWebsite},
		{roblox.PresenceInStudio, StatusInStudio},
		{7, StatusUnknown},
	}
	for _, tc := range cases {
		fake := &fakeUpstream{
			user:     roblox.UserInfo{ID: 261, Name: "Roblox", DisplayName: "Roblox"},
			presence: roblox.Presence{UserPresenceType: tc.presenceType},
		}
		result, err := New(fake).Find(context.Background(), "Roblox")
		if err != nil {
			t.Fatalf("type %d: expected no error, got %v", tc.presenceType, err)
		}
		if !result.Success || result.Found {
			t.Fatalf("type %d: expected success without match, got %+v", tc.presenceType, result)
		}
		if result.Status != tc.status {
			t.Fatalf("type %d: expected status %q, got %q", tc.presenceType, tc.status, result.Status)
		}
		if result.UserID != 261 || result.Username != "Roblox" {
			t.Fatalf("type %d: identity fields missing: %+v", tc.presenceType, result)
		}
	}
}

func TestFind_InGamePrivacyRestricted(t *testing.T) {
	fake := &fakeUpstream{
		user:     roblox.UserInfo{ID: 261, Name: "Roblox", DisplayName: "Roblox"},
		presence: roblox.Presence{UserPresenceType: roblox.PresenceInGame, PlaceID: nil},
	}
	result, err := New(fake).Find(context.Background(), "Roblox")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Found || result.Status != StatusPrivate {
		t.Fatalf("expected private status, got %+v", result)
	}
	if result.Error == "" {
		t.Fatalf("expected explanatory error message")
	}
	if fake.pageCalls != 0 {
		t.Fatalf("expected no server scan, got %d calls", fake.pageCalls)
	}
}

func TestFind_MatchOnSecondPage(t *testing.T) {
	fake := &fakeUpstream{
		user: roblox.UserInfo{ID: 261, Name: "Roblox", DisplayName: "Roblox"},
		presence: roblox.Presence{
			UserPresenceType: roblox.PresenceInGame,
			PlaceID:          placeID(606849621),
			LastLocation:     "Natural Disaster Survival",
		},
	}
	fake.pageFn = func(cursor string) (roblox.ServerPage, error) {
		switch cursor {
		case "":
			return rawPage(t, "page-2",
				roblox.Server{ID: "job-a", PlayerIDs: []int64{1, 2}},
				roblox.Server{ID: "job-b", PlayerIDs: []int64{3}},
			), nil
		case "page-2":
			return rawPage(t, "",
				roblox.Server{ID: "job-c", PlayerIDs: []int64{4, 261}, Playing: 8, MaxPlayers: 30, FPS: 59.9, Ping: 82},
				roblox.Server{ID: "job-d", PlayerIDs: []int64{261}},
			), nil
		default:
			return roblox.ServerPage{}, fmt.Errorf("unexpected cursor %q", cursor)
		}
	}

	result, err := New(fake).Find(context.Background(), "Roblox")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !result.Found {
		t.Fatalf("expected match, got %+v", result)
	}
	// First match in upstream page order wins, never job-d.
	if result.JobID != "job-c" {
		t.Fatalf("expected jobId=job-c, got %q", result.JobID)
	}
	if result.PlaceID != 606849621 || result.GameName != "Natural Disaster Survival" {
		t.Fatalf("unexpected place fields: %+v", result)
	}
	if result.ServerInfo == nil || result.ServerInfo.Playing != 8 || result.ServerInfo.MaxPlayers != 30 {
		t.Fatalf("unexpected server info: %+v", result.ServerInfo)
	}
	if fake.pageCalls != 2 {
		t.Fatalf("expected scan to stop after the matching page, got %d calls", fake.pageCalls)
	}
}

func TestFind_GameNameDefaultsWhenAbsent(t *testing.T) {
	fake := &fakeUpstream{
		user:     roblox.UserInfo{ID: 5, Name: "a", DisplayName: "a"},
		presence: roblox.Presence{UserPresenceType: roblox.PresenceInGame, PlaceID: placeID(9)},
	}
	fake.pageFn = func(string) (roblox.ServerPage, error) {
		return rawPage(t, "", roblox.Server{ID: "job", PlayerIDs: []int64{5}}), nil
	}
	result, err := New(fake).Find(context.Background(), "a")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.GameName != "Unknown Game" {
		t.Fatalf("expected default game name, got %q", result.GameName)
	}
}

func TestFind_NotFoundAfterExhaustedList(t *testing.T) {
	fake := &fakeUpstream{
		user:     roblox.UserInfo{ID: 261, Name: "Roblox", DisplayName: "Roblox"},
		presence: roblox.Presence{UserPresenceType: roblox.PresenceInGame, PlaceID: placeID(1818)},
	}
	fake.pageFn = func(cursor string) (roblox.ServerPage, error) {
		if cursor == "" {
			return rawPage(t, "last",
				roblox.Server{ID: "job-a", PlayerIDs: []int64{1}},
				roblox.Server{ID: "job-b", PlayerIDs: []int64{2}},
			), nil
		}
		return rawPage(t, "", roblox.Server{ID: "job-c", PlayerIDs: []int64{3}}), nil
	}

	result, err := New(fake).Find(context.Background(), "Roblox")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Found || result.Status != StatusPrivateServer {
		t.Fatalf("expected private-server status, got %+v", result)
	}
	if !strings.Contains(result.Error, "Scanned 3 servers") {
		t.Fatalf("expected scanned count in message, got %q", result.Error)
	}
}

func TestFind_ScanCapWithEndlessCursor(t *testing.T) {
	fake := &fakeUpstream{
		user:     roblox.UserInfo{ID: 261, Name: "Roblox", DisplayName: "Roblox"},
		presence: roblox.Presence{UserPresenceType: roblox.PresenceInGame, PlaceID: placeID(1818)},
	}
	fake.pageFn = func(string) (roblox.ServerPage, error) {
		servers := make([]roblox.Server, 100)
		for i := range servers {
			servers[i] = roblox.Server{ID: fmt.Sprintf("job-%d", i), PlayerIDs: []int64{int64(i)}}
		}
		return rawPage(t, "again", servers...), nil
	}

	result, err := New(fake).Find(context.Background(), "Roblox")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Found {
		t.Fatalf("expected no match")
	}
	if fake.pageCalls != MaxScannedServers/100 {
		t.Fatalf("expected %d listing calls at the cap, got %d", MaxScannedServers/100, fake.pageCalls)
	}
	if !strings.Contains(result.Error, "Scanned 500 servers") {
		t.Fatalf("expected capped scanned count, got %q", result.Error)
	}
}

func TestFind_UpstreamFailureAborts(t *testing.T) {
	upstreamErr := errors.New("connection reset")
	fake := &fakeUpstream{
		user:     roblox.UserInfo{ID: 261, Name: "Roblox", DisplayName: "Roblox"},
		presence: roblox.Presence{UserPresenceType: roblox.PresenceInGame, PlaceID: placeID(1818)},
	}
	fake.pageFn = func(string) (roblox.ServerPage, error) {
		return roblox.ServerPage{}, upstreamErr
	}
	if _, err := New(fake).Find(context.Background(), "Roblox"); !errors.Is(err, upstreamErr) {
		t.Fatalf("expected scan error to abort, got %v", err)
	}
}
