package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"c5isr-identity/internal/core/domain"
)

// eventIDPrefix is how every encoded event starts; the id is filled in
// by appendScript so assignment and push happen in one step
const eventIDPrefix = `{"id":0`

// KEYS: 1 list, 2 sequence. ARGV: 1 payload after the id, 2 capacity
var appendScript = redis.NewScript(`
local id = redis.call('INCR', KEYS[2])
redis.call('LPUSH', KEYS[1], '{"id":' .. id .. ARGV[1])
redis.call('LTRIM', KEYS[1], 0, tonumber(ARGV[2]) - 1)
return id
`)

// RedisEventLog keeps a bounded newest-first list per stream
type RedisEventLog struct {
	client   redis.UniversalClient
	listKey  string
	seqKey   string
	capacity int
}

// NewRedisEventLog creates a stream stored under namespace+"audit:"+stream
func NewRedisEventLog(client redis.UniversalClient, namespace, stream string, capacity int) *RedisEventLog {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if capacity < 1 {
		capacity = 1
	}
	base := namespace + "audit:" + stream
	return &RedisEventLog{
		client:   client,
		listKey:  base,
		seqKey:   base + ":seq",
		capacity: capacity,
	}
}

// Append implements EventLog
func (l *RedisEventLog) Append(ctx context.Context, evt domain.AuditEvent) (domain.AuditEvent, error) {
	evt.ID = 0
	payload, err := json.Marshal(evt)
	if err != nil {
		return evt, fmt.Errorf("audit encode: %w", err)
	}
	if !bytes.HasPrefix(payload, []byte(eventIDPrefix)) {
		return evt, fmt.Errorf("audit encode: unexpected layout %.20s", payload)
	}

	id, err := appendScript.Run(ctx, l.client,
		[]string{l.listKey, l.seqKey},
		string(payload[len(eventIDPrefix):]), l.capacity,
	).Int64()
	if err != nil {
		return evt, fmt.Errorf("audit append: %w", err)
	}
	evt.ID = id
	return evt, nil
}

// Recent implements EventLog
func (l *RedisEventLog) Recent(ctx context.Context, offset, limit int) ([]domain.AuditEvent, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		return []domain.AuditEvent{}, nil
	}
	raw, err := l.client.LRange(ctx, l.listKey, int64(offset), int64(offset+limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("audit range: %w", err)
	}

	out := make([]domain.AuditEvent, 0, len(raw))
	for _, r := range raw {
		var evt domain.AuditEvent
		if err := json.Unmarshal([]byte(r), &evt); err != nil {
			return nil, fmt.Errorf("audit decode: %w", err)
		}
		out = append(out, evt)
	}
	return out, nil
}

// Len implements EventLog
func (l *RedisEventLog) Len(ctx context.Context) (int, error) {
	n, err := l.client.LLen(ctx, l.listKey).Result()
	if err != nil {
		return 0, fmt.Errorf("audit len: %w", err)
	}
	return int(n), nil
}

// Capacity implements EventLog
func (l *RedisEventLog) Capacity() int {
	return l.capacity
}
