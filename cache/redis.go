// Package cache provides the shared Redis client plus small cache-aside
// helpers. Everything here degrades gracefully: a missing Redis means
// no caching and no session revocation, never a failed request.
package cache

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewClient connects to Redis at addr. Returns nil when Redis is
// unreachable; callers treat a nil client as "cache disabled".
func NewClient(addr string) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("Redis connection warning: %v (continuing without cache)", err)
		return nil
	}

	log.Println("Redis connected successfully")
	return client
}
