package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alem-hub/course-registry/pkg/circuitbreaker"
	"github.com/alem-hub/course-registry/pkg/logger"
	"github.com/alem-hub/course-registry/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// GO-REDIS ADAPTER
// ══════════════════════════════════════════════════════════════════════════════

// GoRedisClient adapts *redis.Client to RedisClient.
// Publishes go through a circuit breaker wrapping a short retry loop, so a
// dead broker costs the operator at most a few hundred milliseconds per event
// and then nothing at all until the breaker cools down.
type GoRedisClient struct {
	client  *redis.Client
	breaker *circuitbreaker.CircuitBreaker
	retrier *retry.Retrier
	logger  *logger.Logger
}

// RedisOptions configures the go-redis connection.
type RedisOptions struct {
	// URL in redis://[user:password@]host:port/db form.
	URL string

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	Logger *logger.Logger
}

// NewGoRedisClient parses the URL, connects and pings the server.
func NewGoRedisClient(ctx context.Context, opts RedisOptions) (*GoRedisClient, error) {
	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if opts.DialTimeout > 0 {
		redisOpts.DialTimeout = opts.DialTimeout
	}
	if opts.ReadTimeout > 0 {
		redisOpts.ReadTimeout = opts.ReadTimeout
	}
	if opts.WriteTimeout > 0 {
		redisOpts.WriteTimeout = opts.WriteTimeout
	}

	client := redis.NewClient(redisOpts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return newGoRedisClient(client, opts.Logger), nil
}

func newGoRedisClient(client *redis.Client, log *logger.Logger) *GoRedisClient {
	if log == nil {
		log = logger.Nop()
	}
	log = log.With(logger.Component("redis"))

	return &GoRedisClient{
		client: client,
		breaker: circuitbreaker.RedisBreaker(func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		}),
		retrier: retry.PublishRetrier(func(attempt int, err error, delay time.Duration) {
			log.Debug("retrying publish",
				logger.Int("attempt", attempt),
				logger.Duration("delay", delay),
				logger.Err(err),
			)
		}),
		logger: log,
	}
}

// Publish sends a message to a channel.
func (c *GoRedisClient) Publish(ctx context.Context, channel string, message interface{}) error {
	return c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.retrier.Do(ctx, func(ctx context.Context) error {
			return classifyPublishError(c.client.Publish(ctx, channel, message).Err())
		})
	})
}

// classifyPublishError marks connection-level failures as retryable.
// Server replies and context errors are final.
func classifyPublishError(err error) error {
	if err == nil {
		return nil
	}
	var reply redis.Error
	if errors.As(err, &reply) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return retry.Retryable(err)
}

// Subscribe opens a pub/sub subscription and forwards messages until ctx is done.
func (c *GoRedisClient) Subscribe(ctx context.Context, channels ...string) (<-chan RedisMessage, error) {
	pubsub := c.client.Subscribe(ctx, channels...)

	// Wait for the subscription confirmation so early messages are not lost.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %v: %w", channels, err)
	}

	out := make(chan RedisMessage)
	go func() {
		defer close(out)
		defer pubsub.Close()

		in := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- RedisMessage{Channel: msg.Channel, Payload: msg.Payload}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Close closes the underlying connection pool.
func (c *GoRedisClient) Close() error {
	return c.client.Close()
}
