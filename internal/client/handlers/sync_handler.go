package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/opennews/newsbox/internal/client/sync"
)

const maxHistoryLimit = 200

// SyncHandler exposes the sync engine over the control plane.
type SyncHandler struct {
	manager *sync.Manager
	history *sync.History // optional
}

func NewSyncHandler(manager *sync.Manager, history *sync.History) *SyncHandler {
	return &SyncHandler{manager: manager, history: history}
}

// GetStatus returns the current session state.
func (h *SyncHandler) GetStatus(c *gin.Context) {
	state := h.manager.Status().Get()
	c.JSON(http.StatusOK, gin.H{
		"state":   state,
		"counter": state.Counter(),
	})
}

// TriggerSync queues a manual pass.
func (h *SyncHandler) TriggerSync(c *gin.Context) {
	if !h.manager.TriggerSync() {
		AbortWithError(c, http.StatusConflict, CodeSyncBusy, "a sync pass is already queued or running")
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}

// StreamEvents streams session state transitions as server-sent events until
// the client disconnects.
func (h *SyncHandler) StreamEvents(c *gin.Context) {
	status := h.manager.Status()
	events := status.Subscribe()
	defer status.Unsubscribe(events)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	// send the current state immediately so clients render without waiting
	// for the next transition
	c.SSEvent("state", status.Get())
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case state, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent("state", state)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// GetHistory returns recent pass records, newest first.
func (h *SyncHandler) GetHistory(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusOK, gin.H{"passes": []*sync.PassRecord{}})
		return
	}

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > maxHistoryLimit {
			AbortWithError(c, http.StatusBadRequest, CodeBadRequest, "limit must be an integer in [1, 200]")
			return
		}
		limit = parsed
	}

	passes, err := h.history.Recent(limit)
	if err != nil {
		AbortWithError(c, http.StatusInternalServerError, CodeInternal, "could not load pass history")
		return
	}
	if passes == nil {
		passes = []*sync.PassRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"passes": passes})
}
