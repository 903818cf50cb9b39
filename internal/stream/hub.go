package stream

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Hub fans live course events out to websocket subscribers. Each course has
// its own topic; a redis relay mirrors events published by other instances.
type Hub struct {
	id          string
	redis       *redis.Client
	subscribers map[string]map[*Subscriber]struct{}
	mu          sync.RWMutex
}

type Subscriber struct {
	Topic string
	Send  chan []byte
}

// Event is the envelope every topic payload uses.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// relayMessage wraps payloads on the redis wire so an instance can tell its
// own publishes apart from those of other instances.
type relayMessage struct {
	Origin  string `json:"origin"`
	Payload string `json:"payload"`
}

func NewHub(redisClient *redis.Client) *Hub {
	h := &Hub{
		id:          uuid.NewString(),
		redis:       redisClient,
		subscribers: map[string]map[*Subscriber]struct{}{},
	}

	if redisClient != nil {
		go h.relayRedis()
	}
	return h
}

// CourseTopic names the event topic for one course.
func CourseTopic(courseID int) string {
	return "course:" + strconv.Itoa(courseID) + ":events"
}

func (h *Hub) Subscribe(topic string) *Subscriber {
	sub := &Subscriber{
		Topic: topic,
		Send:  make(chan []byte, 64),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subscribers[topic] == nil {
		h.subscribers[topic] = map[*Subscriber]struct{}{}
	}
	h.subscribers[topic][sub] = struct{}{}
	return sub
}

func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if topicSubs, ok := h.subscribers[sub.Topic]; ok {
		delete(topicSubs, sub)
		if len(topicSubs) == 0 {
			delete(h.subscribers, sub.Topic)
		}
	}
	close(sub.Send)
}

// Publish wraps data in an Event envelope and broadcasts it on the topic.
func (h *Hub) Publish(topic, event string, data any) {
	payload, err := json.Marshal(Event{Event: event, Data: data})
	if err != nil {
		log.Printf("stream marshal error: %v", err)
		return
	}
	h.Broadcast(topic, payload)
}

func (h *Hub) Broadcast(topic string, payload []byte) {
	h.mu.RLock()
	subs := h.subscribers[topic]
	h.mu.RUnlock()

	for sub := range subs {
		select {
		case sub.Send <- payload:
		default:
		}
	}

	if h.redis != nil {
		wrapped, err := json.Marshal(relayMessage{Origin: h.id, Payload: string(payload)})
		if err != nil {
			log.Printf("stream marshal error: %v", err)
			return
		}
		if err := h.redis.Publish(context.Background(), topic, wrapped).Err(); err != nil {
			log.Printf("redis publish error: %v", err)
		}
	}
}

// relayRedis fans out publishes from other instances. Local subscribers
// already received this instance's own publishes in Broadcast, so messages
// carrying our origin id are dropped.
func (h *Hub) relayRedis() {
	ctx := context.Background()
	pubsub := h.redis.PSubscribe(ctx, "course:*:events")
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		payload := []byte(msg.Payload)
		var rm relayMessage
		if err := json.Unmarshal(payload, &rm); err == nil && rm.Origin != "" {
			if rm.Origin == h.id {
				continue
			}
			payload = []byte(rm.Payload)
		}

		h.mu.RLock()
		subs := h.subscribers[msg.Channel]
		h.mu.RUnlock()
		for sub := range subs {
			select {
			case sub.Send <- payload:
			default:
			}
		}
	}
}
