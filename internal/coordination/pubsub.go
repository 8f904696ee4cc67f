package coordination

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Publish implements Store. The PUBLISH command's integer reply is the
// exact number of clients that received the message, which is what lets
// the Message Sender decide whether any gateway node is listening for a
// device's accept topic without any extra bookkeeping.
func (s *RedisStore) Publish(ctx context.Context, topic string, payload []byte) (int64, error) {
	n, err := s.client.Publish(ctx, topic, payload).Result()
	if err != nil {
		return 0, fmt.Errorf("publishing to %s: %w", topic, err)
	}
	return n, nil
}

// redisSubscription adapts *redis.PubSub to the Subscription interface
// and stops the dispatch goroutine on Close.
type redisSubscription struct {
	pubsub *redis.PubSub
	cancel context.CancelFunc
}

func (s *redisSubscription) Close() error {
	s.cancel()
	return s.pubsub.Close()
}

// Subscribe implements Store. Delivery runs on its own goroutine until
// ctx is cancelled or the returned Subscription is closed; handler
// panics are recovered so one bad handler can't take down the dispatch
// loop, mirroring the panic-recovery wrapper the teacher's MQTT client
// applies around every subscription callback.
func (s *RedisStore) Subscribe(ctx context.Context, topic string, handler func(ctx context.Context, payload []byte)) (Subscription, error) {
	pubsub := s.client.Subscribe(ctx, topic)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribing to %s: %w", topic, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	ch := pubsub.Channel()

	go func() {
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				s.dispatch(subCtx, topic, msg, handler)
			}
		}
	}()

	return &redisSubscription{pubsub: pubsub, cancel: cancel}, nil
}

func (s *RedisStore) dispatch(ctx context.Context, topic string, msg *redis.Message, handler func(context.Context, []byte)) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in subscription handler", "topic", topic, "panic", r)
		}
	}()
	handler(ctx, []byte(msg.Payload))
}
