package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kirillkom/certificate-harvester/internal/core/domain"
)

const defaultPrefix = "harvester:ledger:"

// Ledger stores entries without expiry; outcomes are kept indefinitely.
type Ledger struct {
	client goredis.UniversalClient
	prefix string
}

func New(client goredis.UniversalClient, prefix string) *Ledger {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Ledger{client: client, prefix: prefix}
}

// Dial connects to addr and verifies the connection with PING.
func Dial(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

func (l *Ledger) Get(ctx context.Context, key string) (*domain.ProcessingEntry, error) {
	raw, err := l.client.Get(ctx, l.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get ledger entry: %w", err)
	}
	var entry domain.ProcessingEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("decode ledger entry %q: %w", key, err)
	}
	return &entry, nil
}

func (l *Ledger) Put(ctx context.Context, key string, entry domain.ProcessingEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode ledger entry: %w", err)
	}
	if err := l.client.Set(ctx, l.prefix+key, raw, 0).Err(); err != nil {
		return fmt.Errorf("redis set ledger entry: %w", err)
	}
	return nil
}
