package core

// Room groups the connections subscribed to one chat.
type Room struct {
	ChatID  string
	clients map[*Client]struct{}
}

// NewRoom constructs a room with no clients.
func NewRoom(chatID string) *Room {
	return &Room{
		ChatID:  chatID,
		clients: make(map[*Client]struct{}),
	}
}

// AddClient inserts a client into the room. Returns true if newly added.
func (r *Room) AddClient(c *Client) bool {
	if _, exists := r.clients[c]; exists {
		return false
	}
	r.clients[c] = struct{}{}
	return true
}

// RemoveClient deletes a client from the room. Returns true if removed.
func (r *Room) RemoveClient(c *Client) bool {
	if _, exists := r.clients[c]; !exists {
		return false
	}
	delete(r.clients, c)
	return true
}

// Has reports whether c is subscribed.
func (r *Room) Has(c *Client) bool {
	_, ok := r.clients[c]
	return ok
}

// Members returns the subscribed clients.
func (r *Room) Members() []*Client {
	members := make([]*Client, 0, len(r.clients))
	for c := range r.clients {
		members = append(members, c)
	}
	return members
}

// Broadcast sends an event to all clients in the room except skip.
func (r *Room) Broadcast(event *Event, skip *Client) {
	for client := range r.clients {
		if client == skip {
			continue
		}
		client.send(event)
	}
}

// Empty returns true if no clients are in the room.
func (r *Room) Empty() bool {
	return len(r.clients) == 0
}
