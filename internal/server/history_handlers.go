package server

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/toolvault/toolvault/internal/history"
	"github.com/toolvault/toolvault/internal/payload"
	"github.com/toolvault/toolvault/internal/storage"
)

// appendRequest is the wire shape of POST /api/history.
type appendRequest struct {
	ToolName  string          `json:"toolName" binding:"required"`
	ToolRoute string          `json:"toolRoute" binding:"required"`
	Input     json.RawMessage `json:"input"`
	Output    json.RawMessage `json:"output"`
	Status    string          `json:"status" binding:"required"`
	Trigger   string          `json:"trigger" binding:"required"`
}

func (s *Server) handleListHistory(c *gin.Context) {
	entries := s.history.List()
	if route := c.Query("route"); route != "" {
		filtered := entries[:0]
		for _, e := range entries {
			if e.ToolRoute == route {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (s *Server) handleAppendHistory(c *gin.Context) {
	var req appendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	input, err := parsePayload(req.Input)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input payload: " + err.Error()})
		return
	}
	output, err := parsePayload(req.Output)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid output payload: " + err.Error()})
		return
	}

	status := storage.Status(req.Status)
	if status != storage.StatusSuccess && status != storage.StatusError {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}

	rec := history.Record{
		ToolName:  req.ToolName,
		ToolRoute: req.ToolRoute,
		Input:     input,
		Output:    output,
		Status:    status,
		Trigger:   storage.Trigger(req.Trigger),
	}

	if err := s.history.Append(c.Request.Context(), rec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"entries": s.history.List()})
}

func (s *Server) handleDeleteEntry(c *gin.Context) {
	if err := s.history.DeleteEntry(c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleClearHistory(c *gin.Context) {
	var err error
	if route := c.Query("route"); route != "" {
		err = s.history.ClearForTool(route)
	} else {
		err = s.history.ClearAll()
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleSearchHistory(c *gin.Context) {
	if s.indexer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "search unavailable"})
		return
	}

	q := c.Query("q")
	if q == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing query parameter q"})
		return
	}

	results, err := s.indexer.Search(q, 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// handleHistoryFeed upgrades to a websocket and pushes the entry list after
// every history mutation until the client disconnects.
func (s *Server) handleHistoryFeed(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		return
	}
	defer conn.Close()

	revisions, id := s.history.Subscribe()
	defer s.history.Unsubscribe(id)

	// Detect client disconnects; the feed is write-only otherwise.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Initial snapshot so the client does not wait for the first mutation.
	if err := conn.WriteJSON(gin.H{"entries": s.history.List()}); err != nil {
		return
	}

	for {
		select {
		case entries, ok := <-revisions:
			if !ok {
				return
			}
			if err := conn.WriteJSON(gin.H{"entries": entries}); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// parsePayload converts an optional raw JSON field into a payload value.
// Absent fields become null.
func parsePayload(raw json.RawMessage) (payload.Value, error) {
	if len(raw) == 0 {
		return payload.Null(), nil
	}
	return payload.FromJSON(raw)
}
