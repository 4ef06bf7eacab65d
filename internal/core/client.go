package core

const (
	commandBuffer = 16
	eventBuffer   = 64
)

// Client is one connection as seen by the core layer.
type Client struct {
	ID       string
	Identity Identity
	Commands chan *Command
	Events   chan *Event

	// Auth is reported to the connection right after registration when set.
	Auth *AuthFailure

	// Rooms is owned by the hub goroutine.
	Rooms map[string]struct{}

	status string
	done   chan struct{}
}

// NewClient constructs a client with initialized channels.
// Connections served by a hub should use Hub.NewClient.
func NewClient(id string, identity Identity) *Client {
	return newClient(id, identity, eventBuffer)
}

func newClient(id string, identity Identity, events int) *Client {
	return &Client{
		ID:       id,
		Identity: identity,
		Commands: make(chan *Command, commandBuffer),
		Events:   make(chan *Event, events),
		Rooms:    make(map[string]struct{}),
		status:   PresenceOnline,
		done:     make(chan struct{}),
	}
}

// Done is closed once the hub has unregistered the client.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// send delivers an event without blocking; slow consumers lose events.
func (c *Client) send(event *Event) bool {
	select {
	case c.Events <- event:
		return true
	default:
		return false
	}
}
