// Package redis connects to Redis with github.com/redis/go-redis/v9, retrying
// until the server answers a PING.
package redis
