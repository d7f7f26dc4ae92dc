// Package httpapi exposes the proxy's inbound HTTP surface: one pass-through
// handler per upstream operation plus the find-player orchestration, all
// behind the shared rate-limit gate and response cache.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/extrasensor/ProxyServer/internal/cache"
	"github.com/extrasensor/ProxyServer/internal/locator"
	"github.com/extrasensor/ProxyServer/internal/roblox"
)

// PlayerFinder runs the find-player orchestration.
type PlayerFinder interface {
	Find(ctx context.Context, username string) (locator.Result, error)
}

// Health reports liveness.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UnixMilli()})
}

// internalError translates an upstream or transport failure into the generic
// 500 with the underlying message attached. No retry, no partial recovery.
func internalError(c *gin.Context, err error) {
	log.WithError(err).WithField("path", c.Request.URL.Path).Error("upstream request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "details": err.Error()})
}

// UsersHandler serves username resolution.
type UsersHandler struct {
	cache  *cache.Cache
	client *roblox.Client
}

// NewUsersHandler constructs a UsersHandler.
func NewUsersHandler(cache *cache.Cache, client *roblox.Client) *UsersHandler {
	return &UsersHandler{cache: cache, client: client}
}

// Resolve maps a username to its userId, username and displayName.
func (h *UsersHandler) Resolve(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
	}
	if errBind := c.ShouldBindJSON(&req); errBind != nil || strings.TrimSpace(req.Username) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username required"})
		return
	}

	key := cache.UserIDKey(req.Username)
	if cached, ok := h.cache.Get(key); ok {
		c.JSON(http.StatusOK, cached)
		return
	}

	info, errResolve := h.client.ResolveUsername(c.Request.Context(), req.Username)
	if errors.Is(errResolve, roblox.ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "User not found"})
		return
	}
	if errResolve != nil {
		internalError(c, errResolve)
		return
	}

	result := gin.H{
		"success":     true,
		"userId":      info.ID,
		"username":    info.Name,
		"displayName": info.DisplayName,
	}
	h.cache.Set(key, result)
	c.JSON(http.StatusOK, result)
}

// PresenceHandler serves the presence pass-through.
type PresenceHandler struct {
	cache  *cache.Cache
	client *roblox.Client
}

// NewPresenceHandler constructs a PresenceHandler.
func NewPresenceHandler(cache *cache.Cache, client *roblox.Client) *PresenceHandler {
	return &PresenceHandler{cache: cache, client: client}
}

// Lookup returns the upstream presence records for the given userIds.
func (h *PresenceHandler) Lookup(c *gin.Context) {
	var req struct {
		UserIDs *[]int64 `json:"userIds"`
	}
	if errBind := c.ShouldBindJSON(&req); errBind != nil || req.UserIDs == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userIds array required"})
		return
	}

	key := cache.PresenceKey(*req.UserIDs)
	if cached, ok := h.cache.Get(key); ok {
		c.JSON(http.StatusOK, cached)
		return
	}

	presences, errLookup := h.client.UserPresences(c.Request.Context(), *req.UserIDs)
	if errLookup != nil {
		internalError(c, errLookup)
		return
	}

	result := gin.H{"success": true, "userPresences": presences}
	h.cache.Set(key, result)
	c.JSON(http.StatusOK, result)
}

// ServersHandler serves the public server listing pass-through.
type ServersHandler struct {
	cache  *cache.Cache
	client *roblox.Client
}

// NewServersHandler constructs a ServersHandler.
func NewServersHandler(cache *cache.Cache, client *roblox.Client) *ServersHandler {
	return &ServersHandler{cache: cache, client: client}
}

// List returns one page of public servers for a place, following the
// caller-supplied continuation cursor.
func (h *ServersHandler) List(c *gin.Context) {
	var req struct {
		PlaceID *int64 `json:"placeId"`
		Cursor  string `json:"cursor"`
	}
	if errBind := c.ShouldBindJSON(&req); errBind != nil || req.PlaceID == nil || *req.PlaceID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "placeId required"})
		return
	}

	key := cache.ServersKey(*req.PlaceID, req.Cursor)
	if cached, ok := h.cache.Get(key); ok {
		c.JSON(http.StatusOK, cached)
		return
	}

	page, errList := h.client.PublicServers(c.Request.Context(), *req.PlaceID, req.Cursor)
	if errList != nil {
		internalError(c, errList)
		return
	}

	result := gin.H{
		"success":        true,
		"servers":        page.Servers,
		"nextPageCursor": page.NextPageCursor,
	}
	h.cache.Set(key, result)
	c.JSON(http.StatusOK, result)
}

// ThumbnailsHandler serves the avatar thumbnail pass-through.
type ThumbnailsHandler struct {
	cache  *cache.Cache
	client *roblox.Client
}

// NewThumbnailsHandler constructs a ThumbnailsHandler.
func NewThumbnailsHandler(cache *cache.Cache, client *roblox.Client) *ThumbnailsHandler {
	return &ThumbnailsHandler{cache: cache, client: client}
}

// Fetch returns the avatar image URL for a player, full render by default or
// the head-only crop when type is avatar-headshot.
func (h *ThumbnailsHandler) Fetch(c *gin.Context) {
	var req struct {
		UserID *int64 `json:"userId"`
		Size   string `json:"size"`
		Type   string `json:"type"`
	}
	if errBind := c.ShouldBindJSON(&req); errBind != nil || req.UserID == nil || *req.UserID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId required"})
		return
	}
	size := req.Size
	if size == "" {
		size = "420x420"
	}
	thumbType := req.Type
	if thumbType == "" {
		thumbType = "avatar"
	}

	key := cache.ThumbnailKey(*req.UserID, size, thumbType)
	if cached, ok := h.cache.Get(key); ok {
		c.JSON(http.StatusOK, cached)
		return
	}

	imageURL, errFetch := h.client.AvatarThumbnail(c.Request.Context(), *req.UserID, size, thumbType)
	if errors.Is(errFetch, roblox.ErrThumbnailNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Thumbnail not found"})
		return
	}
	if errFetch != nil {
		internalError(c, errFetch)
		return
	}

	result := gin.H{"success": true, "imageUrl": imageURL}
	h.cache.Set(key, result)
	c.JSON(http.StatusOK, result)
}

// FinderHandler serves the find-player orchestration.
type FinderHandler struct {
	finder PlayerFinder
}

// NewFinderHandler constructs a FinderHandler.
func NewFinderHandler(finder PlayerFinder) *FinderHandler {
	return &FinderHandler{finder: finder}
}

// Find locates the live server a player is on. The locate chain is never
// cached: each call reflects current presence.
func (h *FinderHandler) Find(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
	}
	if errBind := c.ShouldBindJSON(&req); errBind != nil || strings.TrimSpace(req.Username) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username required"})
		return
	}

	result, errFind := h.finder.Find(c.Request.Context(), req.Username)
	if errors.Is(errFind, roblox.ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "User not found"})
		return
	}
	if errFind != nil {
		internalError(c, errFind)
		return
	}
	c.JSON(http.StatusOK, result)
}
