package server

import (
	"context"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/yearsync/internal/cloudsync"
)

const (
	StatusEventName        = "sync-status"
	statusEventHeartbeat   = "heartbeat"
	statusHeartbeatPeriod  = 25 * time.Second
	statusSubscriberBuffer = 16
)

// StatusMessage is one frame of the sync status stream.
type StatusMessage struct {
	State     cloudsync.State
	Timestamp time.Time
}

// StatusBroadcaster fans orchestrator state changes out to every open status stream.
// Slow subscribers drop frames instead of blocking the orchestrator.
type StatusBroadcaster struct {
	mu          sync.RWMutex
	subscribers map[int64]chan StatusMessage
	nextID      int64
	bufferSize  int
	clock       func() time.Time
}

func NewStatusBroadcaster() *StatusBroadcaster {
	return &StatusBroadcaster{
		subscribers: make(map[int64]chan StatusMessage),
		bufferSize:  statusSubscriberBuffer,
		clock:       time.Now,
	}
}

// Subscribe returns a stream that is removed once ctx is done or cleanup is called.
func (b *StatusBroadcaster) Subscribe(ctx context.Context) (<-chan StatusMessage, func()) {
	stream := make(chan StatusMessage, b.bufferSize)
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subscribers[id] = stream
	b.mu.Unlock()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subscribers, id)
			b.mu.Unlock()
		})
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return stream, cleanup
}

// Publish matches the orchestrator's status listener signature.
func (b *StatusBroadcaster) Publish(state cloudsync.State) {
	message := StatusMessage{State: state, Timestamp: b.clock().UTC()}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, stream := range b.subscribers {
		select {
		case stream <- message:
		default:
		}
	}
}

func (b *StatusBroadcaster) subscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
