package core

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/inaumanmajeed/epicrealm-support/internal/store"
)

// DefaultHistoryReplayLimit caps how many chats a staff connection gets replayed on connect.
const DefaultHistoryReplayLimit = 100

// HubConfig tunes hub behavior.
type HubConfig struct {
	HistoryReplayLimit int
}

type envelope struct {
	client *Client
	cmd    *Command
}

// Hub coordinates connections, chat rooms and presence.
// A single goroutine processes every command, so room state needs no locking
// and persistence always completes before the broadcasts that depend on it.
type Hub struct {
	svc      ChatService
	presence *Presence
	cfg      HubConfig
	log      *zerolog.Logger

	register   chan *Client
	unregister chan *Client
	inbox      chan envelope
	stopped    chan struct{}

	clients map[*Client]struct{}
	rooms   map[string]*Room
}

// NewHub creates a new chat hub instance.
func NewHub(svc ChatService, presence *Presence, cfg HubConfig, logger *zerolog.Logger) *Hub {
	if presence == nil {
		presence = NewPresence()
	}
	if cfg.HistoryReplayLimit <= 0 || cfg.HistoryReplayLimit > store.MaxChatListLimit {
		cfg.HistoryReplayLimit = DefaultHistoryReplayLimit
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Hub{
		svc:        svc,
		presence:   presence,
		cfg:        cfg,
		log:        logger,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbox:      make(chan envelope, 256),
		stopped:    make(chan struct{}),
		clients:    make(map[*Client]struct{}),
		rooms:      make(map[string]*Room),
	}
}

// NewClient constructs a client for this hub. Staff connections get room in
// their event buffer for the full history replay sent on registration.
func (h *Hub) NewClient(id string, identity Identity) *Client {
	size := eventBuffer
	if identity.IsStaff() {
		size += h.cfg.HistoryReplayLimit
	}
	return newClient(id, identity, size)
}

// Presence exposes the presence registry for read-only consumers.
func (h *Hub) Presence() *Presence {
	return h.presence
}

// Run processes registrations and commands until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case c := <-h.register:
			h.handleRegister(ctx, c)
		case c := <-h.unregister:
			h.handleUnregister(c)
		case env := <-h.inbox:
			if _, ok := h.clients[env.client]; !ok || env.cmd == nil {
				continue
			}
			h.handleCommand(ctx, env.client, env.cmd)
		}
	}
}

// RegisterClient attaches a client to the hub. Its Events channel is closed
// by the hub after UnregisterClient or shutdown.
func (h *Hub) RegisterClient(c *Client) {
	select {
	case h.register <- c:
	case <-h.stopped:
		close(c.done)
		close(c.Events)
	}
}

// UnregisterClient detaches a client and leaves all of its rooms.
func (h *Hub) UnregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.stopped:
	}
}

func (h *Hub) handleRegister(ctx context.Context, c *Client) {
	if _, ok := h.clients[c]; ok {
		return
	}
	h.clients[c] = struct{}{}
	first := h.presence.Register(c)

	if c.Auth != nil {
		c.send(&Event{Kind: EventAuthError, Auth: c.Auth})
	}
	c.send(&Event{
		Kind: EventConnected,
		Connected: &ConnectedInfo{
			ConnectionID: c.ID,
			User:         c.Identity.Participant(),
			IsStaff:      c.Identity.IsStaff(),
		},
	})

	h.autoJoin(ctx, c)
	if first {
		h.announcePresence(c, PresenceOnline)
	}

	h.log.Debug().
		Str("client_id", c.ID).
		Str("party", c.Identity.Party.String()).
		Bool("staff", c.Identity.IsStaff()).
		Msg("client registered")

	go h.pump(ctx, c)
}

// autoJoin subscribes a new connection to its chats; staff also get history replayed.
func (h *Hub) autoJoin(ctx context.Context, c *Client) {
	if h.svc == nil {
		return
	}

	ids, err := h.svc.ActiveChatIDs(ctx, c.Identity)
	if err != nil {
		h.log.Warn().Err(err).Str("client_id", c.ID).Msg("list active chats")
	}
	for _, id := range ids {
		h.joinRoom(c, id)
	}

	if !c.Identity.IsStaff() {
		return
	}
	snapshots, err := h.svc.StaffHistory(ctx, c.Identity, h.cfg.HistoryReplayLimit)
	if err != nil {
		h.log.Warn().Err(err).Str("client_id", c.ID).Msg("load staff history")
		return
	}
	dropped := 0
	for _, snap := range snapshots {
		if !c.send(&Event{
			Kind:     EventChatHistory,
			ChatID:   snap.Chat.ID,
			Chat:     snap.Chat,
			Messages: snap.Messages,
		}) {
			dropped++
		}
	}
	if dropped > 0 {
		h.log.Warn().
			Str("client_id", c.ID).
			Int("dropped", dropped).
			Int("replayed", len(snapshots)).
			Msg("history replay exceeded event buffer")
	}
}

func (h *Hub) handleUnregister(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)

	for chatID := range c.Rooms {
		h.leaveRoom(c, chatID)
	}
	offline := h.presence.Unregister(c)
	close(c.done)
	close(c.Events)

	if offline {
		h.announcePresence(c, PresenceOffline)
	}

	h.log.Debug().Str("client_id", c.ID).Msg("client unregistered")
}

// pump forwards a client's commands into the hub inbox.
func (h *Hub) pump(ctx context.Context, c *Client) {
	for {
		select {
		case cmd := <-c.Commands:
			select {
			case h.inbox <- envelope{client: c, cmd: cmd}:
			case <-c.done:
				return
			case <-ctx.Done():
				return
			}
		case <-c.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) shutdown() {
	for c := range h.clients {
		close(c.done)
		close(c.Events)
		h.presence.Unregister(c)
	}
	h.clients = make(map[*Client]struct{})
	h.rooms = make(map[string]*Room)
	h.log.Info().Msg("hub stopped")
}

func (h *Hub) announcePresence(c *Client, status string) {
	h.toStaff(&Event{
		Kind: EventPresenceUpdated,
		Presence: &PresenceChange{
			User:   c.Identity.Participant(),
			Status: status,
		},
	}, c)
}
