package sse

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"quest-gateway/internal/common/logging"
	"quest-gateway/internal/redis"
)

// relayChannel is the Redis pub/sub channel frames travel over.
const relayChannel = "sse:confirmations"

// Relay propagates published frames between gateway instances over Redis
// pub/sub, so a stream held by instance A still sees events published on
// instance B. Optional; without it the broadcaster's guarantees stop at the
// process boundary.
type Relay struct {
	client      *redis.Client
	broadcaster *Broadcaster
	instanceID  string
}

type relayEnvelope struct {
	InstanceID string `json:"instance_id"`
	UserID     string `json:"user_id"`
	Frame      string `json:"frame"`
}

// NewRelay wires broadcaster's forwarder to Redis and returns the relay.
// Call Run to start delivering remote frames.
func NewRelay(client *redis.Client, broadcaster *Broadcaster) *Relay {
	r := &Relay{
		client:      client,
		broadcaster: broadcaster,
		instanceID:  uuid.NewString(),
	}

	broadcaster.SetForwarder(func(userID, frame string) {
		err := client.Publish(context.Background(), relayChannel, relayEnvelope{
			InstanceID: r.instanceID,
			UserID:     userID,
			Frame:      frame,
		})
		if err != nil {
			// Local delivery already happened; losing the relayed copy is
			// within the best-effort contract.
			logging.Warn("failed to relay event", logging.Err(err))
		}
	})

	return r
}

// Run subscribes to the relay channel and delivers frames published by other
// instances to local streams. Blocks until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) {
	pubsub := r.client.Subscribe(ctx, relayChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			var env relayEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				logging.Warn("dropping malformed relay message", logging.Err(err))
				continue
			}

			// Frames from this instance were already delivered locally.
			if env.InstanceID == r.instanceID {
				continue
			}

			r.broadcaster.Deliver(env.UserID, env.Frame)
		}
	}
}
