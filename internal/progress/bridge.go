package progress

import (
	"context"
	"encoding/json"
	"time"

	"github.com/seanyjeong/max-meeting-sub000/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// Bridge relays events published on redis into the local Hub, so gateway
// connections in this process see work done by any worker process.
type Bridge struct {
	client *redis.Client
	hub    *Hub
	log    *logger.Logger
}

func NewBridge(client *redis.Client, hub *Hub, log *logger.Logger) *Bridge {
	return &Bridge{client: client, hub: hub, log: log}
}

// Run subscribes to every recording's progress channel and pumps events
// into the hub until ctx is cancelled. Reconnects on subscription errors.
func (b *Bridge) Run(ctx context.Context) {
	for {
		if err := b.pump(ctx); err != nil && ctx.Err() == nil {
			b.log.Errorf("progress bridge subscription lost: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		return
	}
}

func (b *Bridge) pump(ctx context.Context) error {
	sub := b.client.PSubscribe(ctx, channelPrefix+"*")
	defer sub.Close()

	for {
		msg, err := sub.ReceiveMessage(ctx)
		if err != nil {
			return err
		}
		var event Event
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			b.log.Warnf("progress bridge: drop malformed event on %s: %v", msg.Channel, err)
			continue
		}
		b.hub.Publish(event)
	}
}
