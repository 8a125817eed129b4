package config

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	rdb *redis.Client
)
var redisCtx = context.Background()

func GetRedisDB() *redis.Client {
	return rdb
}

func GetRedisContext() context.Context {
	return redisCtx
}

// ConnectRedisWithRetry connects and sets the global Redis client.
// Redis is optional here (only the rate limiter uses it); when
// REDIS_ADDRESS is unset the client stays nil and callers must cope.
func ConnectRedisWithRetry() {
	address := os.Getenv("REDIS_ADDRESS")
	if address == "" {
		log.Println("REDIS_ADDRESS not set; redis disabled")
		return
	}

	client := redis.NewClient(&redis.Options{
		Addr: address,
	})

	var attempt int
	for {
		attempt++
		if err := client.Ping(redisCtx).Err(); err == nil {
			rdb = client
			log.Printf("redis connected (attempt %d)", attempt)
			return
		} else {
			log.Printf("redis connect attempt %d failed: %v", attempt, err)
		}
		if attempt >= 10 {
			log.Println("giving up on redis; rate limiting disabled")
			return
		}
		time.Sleep(time.Duration(attempt) * time.Second)
	}
}
