package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/toolvault/toolvault/internal/config"
	"github.com/toolvault/toolvault/internal/thumbs"
)

func (s *Server) handleListTools(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tools": s.registry.Tools()})
}

// handleToolMetadata serves the per-tool default-preference document the
// resolver fetches. Accepts both "{directive}" and "{directive}.json".
func (s *Server) handleToolMetadata(c *gin.Context) {
	directive := strings.TrimSuffix(c.Param("directive"), ".json")

	tool, ok := s.registry.ByDirective(directive)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown tool"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"name":           tool.Name,
		"route":          tool.Route,
		"defaultLogging": tool.DefaultLogging,
		"params":         tool.Params,
	})
}

// preferenceView is the wire shape of one route's preference state.
type preferenceView struct {
	Route       string            `json:"route"`
	Effective   config.Preference `json:"effective"`
	Override    config.Preference `json:"override,omitempty"`
	HasOverride bool              `json:"hasOverride"`
	Default     config.Preference `json:"default"`
}

func (s *Server) handleListPreferences(c *gin.Context) {
	ctx := c.Request.Context()

	views := make([]preferenceView, 0)
	for _, tool := range s.registry.Tools() {
		views = append(views, s.preferenceView(ctx, tool.Route))
	}

	c.JSON(http.StatusOK, gin.H{
		"isHistoryEnabled": s.settings.HistoryEnabled(),
		"preferences":      views,
	})
}

func (s *Server) handleGetPreference(c *gin.Context) {
	route := c.Param("route")
	c.JSON(http.StatusOK, s.preferenceView(c.Request.Context(), route))
}

func (s *Server) handleSetPreference(c *gin.Context) {
	route := c.Param("route")

	var req struct {
		Preference string `json:"preference" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pref, err := config.ParsePreference(req.Preference)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.resolver.Set(c.Request.Context(), route, pref); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, s.preferenceView(c.Request.Context(), route))
}

type thumbnailRequest struct {
	ImageID string `json:"imageId" binding:"required"`
	Blob    []byte `json:"blob" binding:"required"`
}

// handleThumbnail proxies one image through the thumbnail worker. A latched
// worker failure degrades to a null thumbnail instead of an error, so a dead
// worker does not keep surfacing failures to callers.
func (s *Server) handleThumbnail(c *gin.Context) {
	if s.broker == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "thumbnail worker not configured"})
		return
	}

	var req thumbnailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	thumb, err := s.broker.RequestThumbnail(c.Request.Context(), req.ImageID, req.Blob)
	if err != nil {
		if errors.Is(err, thumbs.ErrWorkerFailed) {
			c.JSON(http.StatusOK, gin.H{"imageId": req.ImageID, "thumbnail": nil})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"imageId": req.ImageID, "thumbnail": thumb})
}

func (s *Server) preferenceView(ctx context.Context, route string) preferenceView {
	snapshot := s.settings.Snapshot()
	override, has := snapshot.ToolPreferences[route]

	view := preferenceView{
		Route:       route,
		Effective:   s.resolver.Effective(ctx, route),
		HasOverride: has,
		Default:     s.resolver.CachedDefault(route),
	}
	if has {
		view.Override = override
	}
	return view
}
