package sse

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	redisclient "github.com/trpi/scheduling-server-go/internal/redis"
)

const (
	HeartbeatInterval = 30 * time.Second

	clientBufferSize = 100
)

// Client is one open stream. Done is closed when the broker drops it.
type Client struct {
	UserID string
	Events chan Event
	Done   chan struct{}
}

// userStreams is the fan-out state for one user: every open stream plus
// the Redis subscription feeding them.
type userStreams struct {
	clients map[*Client]struct{}
	stop    context.CancelFunc
}

// Broker fans events published on Redis out to the user's open streams on
// this instance. Any instance may publish; each instance subscribes only
// for users with a local stream.
type Broker struct {
	redis *redisclient.Client

	mu    sync.RWMutex
	users map[string]*userStreams

	ctx    context.Context
	cancel context.CancelFunc
}

func NewBroker(redisClient *redisclient.Client) *Broker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Broker{
		redis:  redisClient,
		users:  make(map[string]*userStreams),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (b *Broker) Subscribe(userID string) *Client {
	client := &Client{
		UserID: userID,
		Events: make(chan Event, clientBufferSize),
		Done:   make(chan struct{}),
	}

	b.mu.Lock()
	us, ok := b.users[userID]
	if !ok {
		subCtx, stop := context.WithCancel(b.ctx)
		us = &userStreams{clients: make(map[*Client]struct{}), stop: stop}
		b.users[userID] = us
		go b.forward(subCtx, userID)
	}
	us.clients[client] = struct{}{}
	count := len(us.clients)
	b.mu.Unlock()

	log.Info().Str("userId", userID).Int("clientCount", count).Msg("sse client subscribed")
	return client
}

func (b *Broker) Unsubscribe(client *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	us, ok := b.users[client.UserID]
	if !ok {
		return
	}
	if _, ok := us.clients[client]; !ok {
		return
	}
	delete(us.clients, client)
	close(client.Done)

	if len(us.clients) == 0 {
		us.stop()
		delete(b.users, client.UserID)
	}

	log.Info().Str("userId", client.UserID).Int("clientCount", len(us.clients)).Msg("sse client unsubscribed")
}

// Publish sends event to every stream the user has open on any instance.
func (b *Broker) Publish(ctx context.Context, userID string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.redis.Publish(ctx, redisclient.UserChannel(userID), payload).Err()
}

// forward relays the user's channel to local streams until ctx ends.
func (b *Broker) forward(ctx context.Context, userID string) {
	channel := redisclient.UserChannel(userID)
	pubsub := b.redis.Subscribe(ctx, channel)
	defer pubsub.Close()

	log.Debug().Str("userId", userID).Str("channel", channel).Msg("redis pubsub subscribed")

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Error().Err(err).Str("channel", channel).Msg("failed to decode event")
				continue
			}
			b.deliver(userID, event)
		}
	}
}

func (b *Broker) deliver(userID string, event Event) {
	b.mu.RLock()
	var targets []*Client
	if us, ok := b.users[userID]; ok {
		targets = make([]*Client, 0, len(us.clients))
		for c := range us.clients {
			targets = append(targets, c)
		}
	}
	b.mu.RUnlock()

	for _, c := range targets {
		select {
		case c.Events <- event:
		default:
			log.Warn().Str("userId", userID).Str("event", event.Type).Msg("client event buffer full, dropping event")
		}
	}
}

// Close ends every subscription and stream. Safe to call more than once.
func (b *Broker) Close() {
	b.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, us := range b.users {
		for c := range us.clients {
			close(c.Done)
		}
	}
	b.users = make(map[string]*userStreams)
}

// ClientCount reports the user's open streams on this instance.
func (b *Broker) ClientCount(userID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if us, ok := b.users[userID]; ok {
		return len(us.clients)
	}
	return 0
}
