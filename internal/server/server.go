package server

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/farmer-in-a-tweed-cap/heimursaga-mobile/internal/auth"
	"github.com/farmer-in-a-tweed-cap/heimursaga-mobile/internal/config"
	"github.com/farmer-in-a-tweed-cap/heimursaga-mobile/internal/explore"
	"github.com/farmer-in-a-tweed-cap/heimursaga-mobile/internal/metrics"
	"github.com/farmer-in-a-tweed-cap/heimursaga-mobile/internal/remote"
	"github.com/farmer-in-a-tweed-cap/heimursaga-mobile/internal/social"
	"github.com/farmer-in-a-tweed-cap/heimursaga-mobile/internal/stream"
	"github.com/farmer-in-a-tweed-cap/heimursaga-mobile/internal/trip"
	"github.com/farmer-in-a-tweed-cap/heimursaga-mobile/internal/waypoint"
)

type Server struct {
	App    *fiber.App
	Cfg    config.Config
	DB     *pgxpool.Pool
	Redis  *redis.Client
	Stream *stream.Hub
	Views  *explore.Registry
}

// NewServer wires the view API on top of the configured data source.
// geocoder may be nil, which disables place suggestions.
func NewServer(cfg config.Config, db *pgxpool.Pool, redisClient *redis.Client, geocoder explore.Suggester) *Server {
	// views and sessions hold request strings past the handler
	app := fiber.New(fiber.Config{Immutable: true})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(metrics.Middleware())

	s := &Server{
		App:    app,
		Cfg:    cfg,
		DB:     db,
		Redis:  redisClient,
		Stream: stream.NewHub(redisClient),
	}
	s.Views = explore.NewRegistry(s.sourceFactory(geocoder), s.storeFactory(), s.Stream, explore.Options{
		CenteringGuard:    cfg.CenteringGuard,
		SuggestDebounce:   cfg.SuggestDebounce,
		EnrichConcurrency: cfg.EnrichConcurrency,
	})

	registerRoutes(s)
	return s
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	s.App.Get("/metrics", metrics.Handler())

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)

	explore.RegisterRoutes(s.App.Group("/views"), s.Views, jwtMiddleware)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream, s.Views, jwtMiddleware)

	if s.DB != nil {
		waypoint.RegisterRoutes(s.App.Group("/waypoints", jwtMiddleware), waypoint.NewService(s.DB))
		trip.RegisterRoutes(s.App.Group("/trips"), trip.NewService(s.DB), jwtMiddleware)
		social.RegisterRoutes(s.App, social.NewService(s.DB), jwtMiddleware)
	}
}

// Close tears down every open view and the stream hub. The fiber app is
// shut down separately.
func (s *Server) Close() {
	s.Views.CloseAll()
	s.Stream.Close()
}

// sourceFactory reads from postgres directly when a pool is available and
// the configuration asks for it; otherwise each view talks to the REST API
// with its own session's token.
func (s *Server) sourceFactory(geocoder explore.Suggester) explore.SourceFactory {
	if s.Cfg.DataSource != config.SourceREST && s.DB != nil {
		pages := waypoint.NewService(s.DB)
		trips := trip.NewService(s.DB)
		posts := social.NewService(s.DB)
		return func(sessions *auth.Sessions) explore.Sources {
			viewer := &viewerPosts{svc: posts, sessions: sessions}
			return explore.Sources{
				Pages:       pages,
				Trips:       trips,
				Posts:       viewer,
				Mutations:   posts,
				Suggestions: geocoder,
			}
		}
	}

	if s.Cfg.DataSource != config.SourceREST {
		slog.Warn("no postgres pool, falling back to the REST data source", "api_base_url", s.Cfg.APIBaseURL)
	}
	return func(sessions *auth.Sessions) explore.Sources {
		client := remote.New(s.Cfg.APIBaseURL, s.Cfg.APITimeout, sessions)
		return explore.Sources{
			Pages:       client,
			Trips:       client,
			Posts:       client,
			Mutations:   client,
			Suggestions: geocoder,
		}
	}
}

func (s *Server) storeFactory() explore.StoreFactory {
	if s.Redis == nil {
		return nil
	}
	return func(userID string) auth.Store {
		return auth.NewRedisStore(s.Redis, userID)
	}
}

// viewerPosts resolves per-viewer flags on post detail for the session's
// user.
type viewerPosts struct {
	svc      *social.Service
	sessions *auth.Sessions
}

func (v *viewerPosts) GetPost(ctx context.Context, id string) (social.Post, error) {
	return v.svc.GetPost(social.WithViewer(ctx, v.sessions.UserID()), id)
}
