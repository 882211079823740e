package cache

import (
	"net"
	"strconv"

	"github.com/gofiber/fiber/v2"
	redisstorage "github.com/gofiber/storage/redis"
	"github.com/redis/go-redis/v9"
)

// NewFiberStorage returns a fiber.Storage on the same redis server as client,
// using database 1 so limiter keys never collide with lock keys.
func NewFiberStorage(client *redis.Client) fiber.Storage {
	host := "localhost"
	port := 6379
	addr := client.Options().Addr
	if h, p, err := net.SplitHostPort(addr); err == nil {
		host = h
		if v, err := strconv.Atoi(p); err == nil {
			port = v
		}
	}

	return redisstorage.New(redisstorage.Config{
		Host:     host,
		Port:     port,
		Password: client.Options().Password,
		Database: 1,
		Reset:    false,
	})
}
