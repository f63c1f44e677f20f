// Package storage defines the persistent key-value boundary the favorites
// store reads from and writes to.
package storage

import (
	"context"
	"fmt"
)

// KV is a persistent string key-value store. Get reports a missing key with
// found == false and a nil error. Writes are last-write-wins.
type KV interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Pinger is implemented by drivers that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Supported driver names.
const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// ValidDriver reports whether name is a supported driver.
func ValidDriver(name string) bool {
	switch name {
	case DriverMemory, DriverRedis, DriverPostgres, DriverSQLite:
		return true
	}
	return false
}

type prefixed struct {
	kv     KV
	prefix string
}

// Prefixed scopes kv to keys starting with prefix, so one well-known key can
// exist once per client.
func Prefixed(kv KV, prefix string) KV {
	return &prefixed{kv: kv, prefix: prefix}
}

func (p *prefixed) Get(ctx context.Context, key string) (string, bool, error) {
	return p.kv.Get(ctx, p.prefix+key)
}

func (p *prefixed) Set(ctx context.Context, key, value string) error {
	return p.kv.Set(ctx, p.prefix+key, value)
}

func (p *prefixed) Delete(ctx context.Context, key string) error {
	return p.kv.Delete(ctx, p.prefix+key)
}

// ClientPrefix returns the key prefix for one client's records.
func ClientPrefix(base, clientID string) string {
	return fmt.Sprintf("%s%s:", base, clientID)
}
