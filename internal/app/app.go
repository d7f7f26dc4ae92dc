// Package app wires the proxy's components together and owns the HTTP server
// lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/extrasensor/ProxyServer/internal/cache"
	"github.com/extrasensor/ProxyServer/internal/config"
	"github.com/extrasensor/ProxyServer/internal/httpapi"
	"github.com/extrasensor/ProxyServer/internal/locator"
	"github.com/extrasensor/ProxyServer/internal/ratelimit"
	"github.com/extrasensor/ProxyServer/internal/roblox"
)

const shutdownTimeout = 10 * time.Second

// RunServer builds the component graph from cfg and serves until ctx is
// cancelled, then shuts down gracefully.
func RunServer(ctx context.Context, cfg config.Config) error {
	gin.SetMode(gin.ReleaseMode)

	responseCache := cache.New(cfg.CacheTTL, nil)
	responseCache.StartJanitor()
	defer responseCache.Stop()

	limiter := ratelimit.NewManager(ratelimit.Settings{
		Window:        cfg.RateLimit.Window,
		MaxRequests:   cfg.RateLimit.MaxRequests,
		RedisAddr:     cfg.RateLimit.Redis.Addr,
		RedisPassword: cfg.RateLimit.Redis.Password,
		RedisDB:       cfg.RateLimit.Redis.DB,
		RedisPrefix:   cfg.RateLimit.Redis.Prefix,
	}, nil, nil)
	limiter.Start()
	defer limiter.Close()

	client := roblox.NewClient(roblox.Endpoints{
		Users:      cfg.Upstreams.Users,
		Presence:   cfg.Upstreams.Presence,
		Games:      cfg.Upstreams.Games,
		Thumbnails: cfg.Upstreams.Thumbnails,
	}, cfg.Roblosecurity, nil)

	router := httpapi.NewRouter(httpapi.Deps{
		Cache:          responseCache,
		Limiter:        limiter,
		Client:         client,
		Finder:         locator.New(client),
		AllowedOrigins: cfg.AllowedOrigins,
	})

	server := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     router,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
		// No write timeout: a find-player scan over a popular place can
		// legitimately take a while.
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.Port).Info("proxy server running")
		log.Info("endpoints available: POST /api/username-to-id, POST /api/presence, POST /api/servers, POST /api/find-player, POST /api/thumbnail, GET /health")
		errCh <- server.ListenAndServe()
	}()

	select {
	case errServe := <-errCh:
		if errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			return errServe
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
		return fmt.Errorf("shutdown: %w", errShutdown)
	}
	return nil
}
