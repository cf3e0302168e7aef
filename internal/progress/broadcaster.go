package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Broadcaster publishes lifecycle/progress events for a recording.
type Broadcaster interface {
	Publish(ctx context.Context, event Event) error
}

const (
	channelPrefix = "stt:progress:"
	lastStatusTTL = time.Hour
)

// ChannelFor returns the pub/sub channel carrying one recording's events.
func ChannelFor(recordingID uuid.UUID) string {
	return channelPrefix + recordingID.String()
}

func lastStatusKey(recordingID uuid.UUID) string {
	return "stt:last_status:" + recordingID.String()
}

// RedisBroadcaster fans events out across processes: the worker publishes,
// gateway processes subscribe. The last event is also cached so a client
// reconnecting mid-job sees current state immediately.
type RedisBroadcaster struct {
	client *redis.Client
}

func NewRedisBroadcaster(client *redis.Client) *RedisBroadcaster {
	return &RedisBroadcaster{client: client}
}

func (b *RedisBroadcaster) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal progress event: %w", err)
	}
	if err := b.client.Publish(ctx, ChannelFor(event.RecordingID), payload).Err(); err != nil {
		return err
	}
	return b.client.Set(ctx, lastStatusKey(event.RecordingID), payload, lastStatusTTL).Err()
}

// LastStatus returns the most recently published event for a recording,
// or ok=false when none is cached.
func (b *RedisBroadcaster) LastStatus(ctx context.Context, recordingID uuid.UUID) (Event, bool, error) {
	payload, err := b.client.Get(ctx, lastStatusKey(recordingID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Event{}, false, nil
		}
		return Event{}, false, err
	}
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return Event{}, false, err
	}
	return event, true, nil
}
