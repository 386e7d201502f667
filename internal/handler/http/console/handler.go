// Package console exposes the realtime engine's read model and entry
// points to the admin UI over HTTP.
package console

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"astroconsole-backend/internal/domain"
	"astroconsole-backend/internal/service/engine"
	"astroconsole-backend/pkg/response"
)

// Handler handles console HTTP requests
type Handler struct {
	engine *engine.Engine
}

// NewHandler creates a new console handler
func NewHandler(e *engine.Engine) *Handler {
	return &Handler{engine: e}
}

// RegisterRoutes mounts the console endpoints on a router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/roster", h.GetRoster)
	rg.POST("/roster", h.LoadRoster)
	rg.GET("/unread", h.GetUnread)
	rg.GET("/events", h.StreamEvents)
	rg.POST("/conversations/:id/open", h.OpenConversation)
	rg.GET("/call", h.GetCall)
	rg.POST("/call", h.RequestCall)
	rg.POST("/call/response", h.RespondToCall)
	rg.DELETE("/call", h.EndOrCancelCall)
}

// GetRoster returns the ranked conversation list
// GET /v1/roster
func (h *Handler) GetRoster(c *gin.Context) {
	entries := h.engine.Roster(c.Request.Context())
	response.Success(c, http.StatusOK, gin.H{"roster": entries})
}

// LoadRoster seeds the engine with the counterpart list the console
// fetched from the data layer
// POST /v1/roster
func (h *Handler) LoadRoster(c *gin.Context) {
	var req struct {
		Counterparts []domain.Counterpart `json:"counterparts" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "counterparts list is required")
		return
	}

	h.engine.LoadRoster(req.Counterparts)
	response.Success(c, http.StatusAccepted, gin.H{"tracked": len(req.Counterparts)})
}

// GetUnread returns unread counters and the current call snapshot
// GET /v1/unread
func (h *Handler) GetUnread(c *gin.Context) {
	response.Success(c, http.StatusOK, h.engine.Snapshot())
}

// OpenConversation marks a conversation as opened, zeroing its counters
// POST /v1/conversations/:id/open
func (h *Handler) OpenConversation(c *gin.Context) {
	counterpartID := c.Param("id")
	if counterpartID == "" {
		response.ValidationError(c, "counterpart id is required")
		return
	}

	h.engine.MarkConversationOpened(counterpartID)
	response.Success(c, http.StatusOK, h.engine.Snapshot())
}

// GetCall returns the current call session, if any
// GET /v1/call
func (h *Handler) GetCall(c *gin.Context) {
	session := h.engine.CurrentCall()
	if session == nil {
		response.NotFound(c, "no current call")
		return
	}
	response.Success(c, http.StatusOK, session)
}

// RequestCall initiates an outgoing call
// POST /v1/call
func (h *Handler) RequestCall(c *gin.Context) {
	var req struct {
		CounterpartID string           `json:"counterpart_id" binding:"required"`
		MediaKind     domain.MediaKind `json:"media_kind"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "counterpart_id is required")
		return
	}
	if req.MediaKind == "" {
		req.MediaKind = domain.MediaVoice
	}
	if req.MediaKind != domain.MediaVoice && req.MediaKind != domain.MediaVideo {
		response.ValidationError(c, "media_kind must be voice or video")
		return
	}

	if err := h.engine.RequestCall(req.CounterpartID, req.MediaKind); err != nil {
		response.Conflict(c, err.Error())
		return
	}
	response.Success(c, http.StatusAccepted, gin.H{"status": "requested"})
}

// RespondToCall accepts or rejects the displayed incoming call
// POST /v1/call/response
func (h *Handler) RespondToCall(c *gin.Context) {
	var req struct {
		Accept bool   `json:"accept"`
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request body")
		return
	}

	if err := h.engine.RespondToIncomingCall(req.Accept, req.Reason); err != nil {
		response.Conflict(c, err.Error())
		return
	}
	response.Success(c, http.StatusOK, gin.H{"call": h.engine.CurrentCall()})
}

// EndOrCancelCall ends the active call or cancels the current attempt
// DELETE /v1/call
func (h *Handler) EndOrCancelCall(c *gin.Context) {
	h.engine.EndOrCancelCurrentCall()
	response.Success(c, http.StatusOK, gin.H{"status": "ended"})
}

// StreamEvents pushes a server-sent event whenever the read model changes
// GET /v1/events
func (h *Handler) StreamEvents(c *gin.Context) {
	ch, unsub := h.engine.Subscribe()
	defer unsub()

	c.Stream(func(w io.Writer) bool {
		select {
		case _, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent("change", h.engine.Snapshot())
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
