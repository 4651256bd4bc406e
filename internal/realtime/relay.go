package realtime

import (
	"context"

	"github.com/go-redis/redis/v8"
)

// Relay carries frames to connections hosted by other instances. Publish
// reports how many hosts picked the frame up; zero means no instance holds
// the connection and the binding is stale.
type Relay interface {
	Publish(ctx context.Context, connID string, frame []byte) (int64, error)
	Subscribe(ctx context.Context, connID string, deliver func(frame []byte)) (func(), error)
}

const relayChannelPrefix = "realtime:conn:"

// RedisRelay relays frames over redis pub/sub, one channel per connection.
// Together with RedisRegistry it makes a user reachable from any instance:
// the registry says which connection a user has, the relay gets the frame to
// whichever host owns it.
type RedisRelay struct {
	rdb *redis.Client
}

func NewRedisRelay(rdb *redis.Client) *RedisRelay {
	return &RedisRelay{rdb: rdb}
}

func (r *RedisRelay) Publish(ctx context.Context, connID string, frame []byte) (int64, error) {
	return r.rdb.Publish(ctx, relayChannelPrefix+connID, frame).Result()
}

// Subscribe pumps frames published for connID into deliver until the returned
// stop function is called.
func (r *RedisRelay) Subscribe(ctx context.Context, connID string, deliver func(frame []byte)) (func(), error) {
	pubsub := r.rdb.Subscribe(ctx, relayChannelPrefix+connID)
	// Confirm the subscription before reporting the connection reachable, so
	// a publish racing the handshake cannot be lost.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, err
	}
	go func() {
		for msg := range pubsub.Channel() {
			deliver([]byte(msg.Payload))
		}
	}()
	return func() { pubsub.Close() }, nil
}
