package tokenstore

import (
	"context"
	"fmt"
)

// Supported backend drivers for Open.
const (
	DriverSQLite = "sqlite"
	DriverBolt   = "bbolt"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// Open builds a Store over the backend named by driver. dsn is a file path
// for sqlite and bbolt, a redis:// URL for redis, and ignored for memory.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	var (
		backend Backend
		err     error
	)
	switch driver {
	case DriverSQLite, "":
		backend, err = OpenSQLite(ctx, dsn)
	case DriverBolt:
		backend, err = OpenBolt(dsn)
	case DriverRedis:
		backend, err = OpenRedis(ctx, dsn)
	case DriverMemory:
		backend = NewMemoryBackend()
	default:
		return nil, fmt.Errorf("unknown credential store driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	return New(backend), nil
}
