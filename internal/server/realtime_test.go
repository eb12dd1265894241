package server

import (
	"context"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/yearsync/internal/cloudsync"
)

func TestStatusBroadcasterPublishesToSubscribers(t *testing.T) {
	broadcaster := NewStatusBroadcaster()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first, cleanupFirst := broadcaster.Subscribe(ctx)
	defer cleanupFirst()
	second, cleanupSecond := broadcaster.Subscribe(ctx)
	defer cleanupSecond()

	broadcaster.Publish(cloudsync.State{Status: cloudsync.StatusSyncing})

	for _, stream := range []<-chan StatusMessage{first, second} {
		select {
		case received := <-stream:
			if received.State.Status != cloudsync.StatusSyncing {
				t.Fatalf("expected syncing, got %s", received.State.Status)
			}
			if received.Timestamp.IsZero() {
				t.Fatalf("expected timestamp to be stamped")
			}
		case <-time.After(500 * time.Millisecond):
			t.Fatal("expected status message within deadline")
		}
	}
}

func TestStatusBroadcasterDropsFramesForSlowSubscribers(t *testing.T) {
	broadcaster := NewStatusBroadcaster()
	stream, cleanup := broadcaster.Subscribe(context.Background())
	defer cleanup()

	for range statusSubscriberBuffer + 5 {
		broadcaster.Publish(cloudsync.State{Status: cloudsync.StatusSynced})
	}
	if len(stream) != statusSubscriberBuffer {
		t.Fatalf("expected buffer to cap at %d, got %d", statusSubscriberBuffer, len(stream))
	}
}

func TestStatusBroadcasterUnsubscribesWhenContextEnds(t *testing.T) {
	broadcaster := NewStatusBroadcaster()
	ctx, cancel := context.WithCancel(context.Background())

	_, cleanup := broadcaster.Subscribe(ctx)
	defer cleanup()
	if broadcaster.subscriberCount() != 1 {
		t.Fatalf("expected one subscriber")
	}

	cancel()
	deadline := time.Now().Add(time.Second)
	for broadcaster.subscriberCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("expected subscriber to be removed after cancellation")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
