package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/inaumanmajeed/epicrealm-support/internal/core"
	"github.com/inaumanmajeed/epicrealm-support/internal/proto"
	"github.com/inaumanmajeed/epicrealm-support/internal/store"
)

// SupportHandlers serves the read-only staff dashboard endpoints.
type SupportHandlers struct {
	svc      core.ChatService
	presence *core.Presence
	log      *zerolog.Logger
}

// NewSupportHandlers creates a new support handlers instance.
func NewSupportHandlers(svc core.ChatService, presence *core.Presence, logger *zerolog.Logger) *SupportHandlers {
	return &SupportHandlers{svc: svc, presence: presence, log: logger}
}

// ChatDetailResponse is a chat with its full history.
type ChatDetailResponse struct {
	Chat     proto.Chat      `json:"chat"`
	Messages []proto.Message `json:"messages"`
}

// PresenceResponse lists online identities.
type PresenceResponse struct {
	Visitors    int                   `json:"visitors"`
	Staff       int                   `json:"staff"`
	Connections int                   `json:"connections"`
	Online      []proto.PresenceEntry `json:"online"`
}

// ListChats handles listing active chats.
// GET /api/support/chats?status=&priority=&limit=
func (h *SupportHandlers) ListChats(c *gin.Context) {
	filter := store.ChatFilter{
		Status:   store.ChatStatus(c.Query("status")),
		Priority: store.ChatPriority(c.Query("priority")),
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
			return
		}
		filter.Limit = limit
	}

	chats, err := h.svc.ListChats(c.Request.Context(), staffIdentity(c), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}

	response := make([]proto.Chat, 0, len(chats))
	for _, chat := range chats {
		response = append(response, chatDTO(chat))
	}
	c.JSON(http.StatusOK, proto.EventAllChats{Success: true, Chats: response})
}

// GetChat handles fetching one chat with its history, internal notes included.
// GET /api/support/chats/:id
func (h *SupportHandlers) GetChat(c *gin.Context) {
	snap, err := h.svc.JoinChat(c.Request.Context(), staffIdentity(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ChatDetailResponse{Chat: chatDTO(snap.Chat), Messages: messagesDTO(snap.Messages)})
}

// GetStats handles dashboard counters.
// GET /api/support/stats
func (h *SupportHandlers) GetStats(c *gin.Context) {
	stats, err := h.svc.Stats(c.Request.Context(), staffIdentity(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, proto.EventChatStats{Success: true, Stats: statsDTO(stats)})
}

// GetPresence handles the online listing.
// GET /api/support/presence
func (h *SupportHandlers) GetPresence(c *gin.Context) {
	counts := h.presence.OnlineCounts()
	c.JSON(http.StatusOK, PresenceResponse{
		Visitors:    counts.Visitors,
		Staff:       counts.Staff,
		Connections: counts.Connections,
		Online:      presenceDTO(h.presence.Snapshot()),
	})
}

func (h *SupportHandlers) respondError(c *gin.Context, err error) {
	ce := core.Classify(err)
	status := http.StatusInternalServerError
	switch ce.Code {
	case core.ErrCodeAccessDenied:
		status = http.StatusForbidden
	case core.ErrCodeChatNotFound:
		status = http.StatusNotFound
	case core.ErrCodeBadRequest, core.ErrCodeValidationFailed:
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("support request failed")
	}
	c.JSON(status, ErrorResponse{Error: ce.Message})
}

func staffIdentity(c *gin.Context) core.Identity {
	if v, ok := c.Get(ContextKeyIdentity); ok {
		if identity, ok := v.(core.Identity); ok {
			return identity
		}
	}
	return core.Identity{}
}
