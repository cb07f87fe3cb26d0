package ws

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"
)

const redisChannel = "tradetalk:events"

// envelope is what travels over Redis: the target room and the encoded event
type envelope struct {
	Room  string          `json:"room"`
	Event json.RawMessage `json:"event"`
}

// RedisRelay fans hub events out to every instance through Redis Pub/Sub
type RedisRelay struct {
	rdb     *redis.Client
	channel string
}

func NewRedisRelay(rdb *redis.Client) *RedisRelay {
	return &RedisRelay{rdb: rdb, channel: redisChannel}
}

// Publish sends an encoded event for a room to all instances, this one included
func (r *RedisRelay) Publish(ctx context.Context, room string, data []byte) error {
	payload, err := json.Marshal(envelope{Room: room, Event: data})
	if err != nil {
		return err
	}
	return r.rdb.Publish(ctx, r.channel, payload).Err()
}

// Subscribe delivers relayed events until ctx is cancelled
func (r *RedisRelay) Subscribe(ctx context.Context, deliver func(room string, data []byte)) error {
	pubsub := r.rdb.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	ch := pubsub.Channel()
	log.Println("📡 Redis Pub/Sub relay started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				log.Printf("Error unmarshaling Redis message: %v", err)
				continue
			}
			deliver(env.Room, env.Event)
		}
	}
}
