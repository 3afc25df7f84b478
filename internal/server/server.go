/*
Package server exposes the history, preference, metadata, and thumbnail
services over HTTP for the tool front-end.

Routes:

  GET    /healthz
  GET    /api/tools
  GET    /api/tool-metadata/:directive         ({directive}.json accepted)
  GET    /api/history
  GET    /api/history/search?q=...
  GET    /api/history/ws                       (websocket revision feed)
  POST   /api/history
  DELETE /api/history/:id
  DELETE /api/history                          (?route= scopes to one tool)
  GET    /api/preferences
  GET    /api/preferences/*route
  PUT    /api/preferences/*route
  POST   /api/thumbnails
*/
package server

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/toolvault/toolvault/internal/config"
	"github.com/toolvault/toolvault/internal/history"
	"github.com/toolvault/toolvault/internal/prefs"
	"github.com/toolvault/toolvault/internal/registry"
	"github.com/toolvault/toolvault/internal/search"
	"github.com/toolvault/toolvault/internal/thumbs"
)

// Server wires the service objects behind the HTTP API.
type Server struct {
	history  *history.Store
	resolver *prefs.Resolver
	settings *config.Store
	registry *registry.Registry
	indexer  *search.Indexer
	broker   *thumbs.Broker

	engine   *gin.Engine
	upgrader websocket.Upgrader
}

// Options carries the collaborators for New. Indexer and Broker may be nil;
// the corresponding endpoints degrade.
type Options struct {
	History  *history.Store
	Resolver *prefs.Resolver
	Settings *config.Store
	Registry *registry.Registry
	Indexer  *search.Indexer
	Broker   *thumbs.Broker
}

// New builds the HTTP server.
func New(opts Options) *Server {
	s := &Server{
		history:  opts.History,
		resolver: opts.Resolver,
		settings: opts.Settings,
		registry: opts.Registry,
		indexer:  opts.Indexer,
		broker:   opts.Broker,
		upgrader: websocket.Upgrader{
			// The front-end is served from arbitrary dev origins; history
			// data never leaves the machine.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/healthz", s.handleHealth)

	api := engine.Group("/api")
	{
		api.GET("/tools", s.handleListTools)
		api.GET("/tool-metadata/:directive", s.handleToolMetadata)

		api.GET("/history", s.handleListHistory)
		api.GET("/history/search", s.handleSearchHistory)
		api.GET("/history/ws", s.handleHistoryFeed)
		api.POST("/history", s.handleAppendHistory)
		api.DELETE("/history/:id", s.handleDeleteEntry)
		api.DELETE("/history", s.handleClearHistory)

		api.GET("/preferences", s.handleListPreferences)
		api.GET("/preferences/*route", s.handleGetPreference)
		api.PUT("/preferences/*route", s.handleSetPreference)

		api.POST("/thumbnails", s.handleThumbnail)
	}

	s.engine = engine
	return s
}

// Handler returns the http.Handler for mounting or testing.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until the listener fails.
func (s *Server) Run(addr string) error {
	log.Printf("HTTP API listening on %s", addr)
	return s.engine.Run(addr)
}

func (s *Server) handleHealth(c *gin.Context) {
	status := gin.H{"status": "ok"}
	if lastErr := s.history.LastError(); lastErr != "" {
		status["historyError"] = lastErr
	}
	c.JSON(http.StatusOK, status)
}
