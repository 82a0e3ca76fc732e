// Package server wires the HTTP API: knowledge base and document management,
// query execution and the interaction log.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/grounded/config"
	"github.com/mohammad-safakhou/grounded/internal/index"
	"github.com/mohammad-safakhou/grounded/internal/ingest"
	"github.com/mohammad-safakhou/grounded/internal/provider"
	"github.com/mohammad-safakhou/grounded/internal/query"
	"github.com/mohammad-safakhou/grounded/internal/store"
	"github.com/mohammad-safakhou/grounded/internal/telemetry"
)

// Run builds the service from configuration and serves until the listener
// fails. Fatal wiring problems are returned, not logged and swallowed.
func Run(cfg *config.Config) error {
	e := newEcho()

	tel := telemetry.New()
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(tel.Handler()))

	ctx := context.Background()

	dsn, err := cfg.Storage.Postgres.DSN()
	if err != nil {
		return err
	}
	if err := Migrate("file://migrations", dsn, "up", 0); err != nil {
		log.Printf("migrations: %v", err)
	}
	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		return err
	}

	llm, err := provider.New(cfg.LLM, log.New(log.Writer(), "[LLM] ", log.LstdFlags))
	if err != nil {
		return err
	}
	if cfg.Storage.Redis.Address != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Storage.Redis.Address,
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis connection failed (%s): %w", cfg.Storage.Redis.Address, err)
		}
		llm = provider.NewEmbeddingCache(llm, rdb, cfg.Storage.Redis.CacheTTL, log.New(log.Writer(), "[CACHE] ", log.LstdFlags))
	}

	var idx index.Index
	switch cfg.Vector.Backend {
	case "postgres":
		idx, err = index.NewPostgres(st.DB, cfg.Vector.Dimensions)
	default:
		idx, err = index.NewMemory(cfg.Vector.Dimensions)
	}
	if err != nil {
		return err
	}

	orch := query.NewOrchestrator(llm, idx, st,
		log.New(log.Writer(), "[QUERY] ", log.LstdFlags), tel,
		cfg.Retrieval.TopK, cfg.LLM.Timeout)
	ing := ingest.NewService(llm, idx, st,
		log.New(log.Writer(), "[INGEST] ", log.LstdFlags), tel,
		cfg.Chunking.MaxWords, cfg.Chunking.OverlapWords)

	api := e.Group("/api")
	(&KnowledgeBaseHandler{Store: st, Index: idx}).Register(api.Group("/knowledge-bases"))
	(&DocumentHandler{Store: st, Ingest: ing}).Register(api.Group("/knowledge-bases"))
	(&QueryHandler{Store: st, Orchestrator: orch}).Register(api.Group("/knowledge-bases"))
	(&InteractionHandler{Store: st}).Register(api.Group("/interactions"))
	(&DashboardHandler{Store: st}).Register(api.Group("/dashboard"))

	addr := cfg.Server.Address
	if addr == "" {
		addr = ":10030"
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}

// newEcho applies the middleware and error handling shared by the service
// and its handler tests.
func newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie"},
		AllowCredentials: true,
	}))
	return e
}
