// Package redis connects to the Redis server that backs the shared
// detection result cache.
//
// Config is meant to be embedded in a larger configuration struct and
// populated from environment variables via github.com/caarlos0/env:
//
//	type Config struct {
//	    Redis redis.Config `envPrefix:"REDIS_"`
//	}
//
// Connect parses the URL and pings the server, retrying until it answers or
// the attempts run out:
//
//	client, err := redis.Connect(ctx, cfg.Redis)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
// Errors wrap the underlying go-redis error with errors.Join, so both the
// sentinel and the cause match errors.Is.
package redis
