package config

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/bsm/redislock"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

var (
	rdb    *redis.Client
	locker *redislock.Client
)
var ctx = context.Background()

func GetRedisDB() *redis.Client {
	return rdb
}

func GetRedisLock() *redislock.Client {
	return locker
}

func init() {
	godotenv.Load()
}

// ConnectRedisWithRetry connects and sets the global Redis client.
// Call this from main() AFTER the HTTP server is listening.
func ConnectRedisWithRetry() {
	address := os.Getenv("REDIS_ADDRESS")
	if address == "" {
		address = "127.0.0.1:6379"
	}

	var attempt int
	for {
		attempt++
		client := redis.NewClient(&redis.Options{
			Addr:     address,
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       0,
		})
		if err := client.Ping(ctx).Err(); err == nil {
			rdb = client
			locker = redislock.New(client)
			log.Printf("connected to redis (attempt=%d)", attempt)
			return
		} else {
			_ = client.Close()
			sleep := time.Second * time.Duration(1<<min(attempt, 5))
			if sleep > 30*time.Second {
				sleep = 30 * time.Second
			}
			log.Printf("failed to connect redis (attempt=%d): %v; retrying in %s", attempt, err, sleep)
			time.Sleep(sleep)
		}
	}
}

func GetRedisObject(key string, dest interface{}) (bool, error) {
	if rdb == nil {
		return false, nil
	}
	val, err := rdb.Get(ctx, key).Result()
	if err != nil {
		if err.Error() == "redis: nil" {
			return false, nil
		}
		return false, err
	}
	err = json.Unmarshal([]byte(val), &dest)
	if err != nil {
		return false, err
	}
	return true, nil
}

func GetRedisValue(key string) (string, bool, error) {
	if rdb == nil {
		return "", false, nil
	}
	val, err := rdb.Get(ctx, key).Result()
	if err != nil {
		if err.Error() == "redis: nil" {
			return "", false, nil
		}
		return "", false, err
	}
	return val, true, nil
}

func SetRedisObject(key string, obj interface{}, exp time.Duration) error {
	if rdb == nil {
		return nil
	}
	objInByte, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	if err = rdb.Set(ctx, key, objInByte, exp).Err(); err != nil {
		return err
	}
	return nil
}

func SetRedisValue(key string, value string, exp time.Duration) error {
	if rdb == nil {
		return nil
	}
	return rdb.Set(ctx, key, value, exp).Err()
}

func RemoveRedisKey(keys ...string) error {
	if rdb == nil {
		return nil
	}
	return rdb.Del(ctx, keys...).Err()
}
