package websocket

import (
	"encoding/json"

	"github.com/isdelr/lms-be/internal/services"
	"github.com/rs/zerolog/log"
)

// GlobalTopic receives every notification regardless of course.
const GlobalTopic = "global"

type topicMessage struct {
	topic   string
	payload []byte
}

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Register requests from the clients.
	Register chan *Client

	// Unregister requests from clients.
	Unregister chan *Client

	// Outbound messages addressed to a topic.
	broadcast chan topicMessage

	// A map of topics (course IDs or GlobalTopic) to subscribed clients.
	subscriptions map[string]map[*Client]bool

	done chan struct{}
}

var _ services.EnrollmentNotifier = (*Hub)(nil)

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		Register:      make(chan *Client),
		Unregister:    make(chan *Client),
		broadcast:     make(chan topicMessage, 256),
		clients:       make(map[*Client]bool),
		subscriptions: make(map[string]map[*Client]bool),
		done:          make(chan struct{}),
	}
}

// Run starts the Hub's message processing loop. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			for client := range h.clients {
				close(client.Send)
			}
			h.clients = make(map[*Client]bool)
			h.subscriptions = make(map[string]map[*Client]bool)
			return
		case client := <-h.Register:
			h.clients[client] = true
			h.addSubscription(client, client.Topic)
			log.Info().Int("total_clients", len(h.clients)).Str("topic", client.Topic).Msg("Client connected")
		case client := <-h.Unregister:
			if _, ok := h.clients[client]; ok {
				// Remove from global clients and any subscriptions
				h.drop(client)
				log.Info().Int("total_clients", len(h.clients)).Msg("Client disconnected")
			}
		case msg := <-h.broadcast:
			for client := range h.subscriptions[msg.topic] {
				select {
				case client.Send <- msg.payload:
				default:
					h.drop(client)
				}
			}
		}
	}
}

// Join registers a client, or does nothing once the hub has stopped.
func (h *Hub) Join(client *Client) {
	select {
	case h.Register <- client:
	case <-h.done:
	}
}

// Leave unregisters a client, or does nothing once the hub has stopped.
func (h *Hub) Leave(client *Client) {
	select {
	case h.Unregister <- client:
	case <-h.done:
	}
}

// Stop ends Run and closes every client's send channel.
func (h *Hub) Stop() {
	close(h.done)
}

// BroadcastTo queues a message for all clients subscribed to topic. Messages
// are dropped when the queue is full so callers never block.
func (h *Hub) BroadcastTo(topic string, message []byte) {
	select {
	case h.broadcast <- topicMessage{topic: topic, payload: message}:
	default:
		log.Warn().Str("topic", topic).Msg("Broadcast queue full, dropping message")
	}
}

// NotifyEnrollmentChanged tells the course's subscribers and the global topic
// that a roster changed.
func (h *Hub) NotifyEnrollmentChanged(change services.EnrollmentChange) {
	payload, err := json.Marshal(Message{Action: ActionEnrollmentChanged, Payload: change})
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode enrollment notification")
		return
	}
	h.BroadcastTo(change.CourseID, payload)
	h.BroadcastTo(GlobalTopic, payload)
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.Send)
	h.removeSubscription(client)
}

func (h *Hub) addSubscription(client *Client, topic string) {
	if h.subscriptions[topic] == nil {
		h.subscriptions[topic] = make(map[*Client]bool)
	}
	h.subscriptions[topic][client] = true
}

func (h *Hub) removeSubscription(client *Client) {
	for topic, subs := range h.subscriptions {
		if _, ok := subs[client]; ok {
			delete(subs, client)
			if len(subs) == 0 {
				delete(h.subscriptions, topic)
			}
		}
	}
}
