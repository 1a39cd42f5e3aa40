// Package callerid maps inbound caller identifiers (phone numbers) to user ids.
package callerid

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/redis/go-redis/v9"
)

var ErrDirectoryUnavailable = errors.New("CALLER_DIRECTORY_UNAVAILABLE")

// Directory resolves a caller identifier to a user id.
type Directory interface {
	LookupUserID(ctx context.Context, callerID string) (string, bool, error)
}

// Normalize strips punctuation and a leading US country code.
// "+1 (555) 010-2000" and "5550102000" normalize to the same key.
func Normalize(callerID string) string {
	var b strings.Builder
	for _, r := range callerID {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return strings.ToLower(strings.TrimSpace(callerID))
	}
	if len(digits) == 11 && digits[0] == '1' {
		return digits[1:]
	}
	return digits
}

// StaticDirectory is an immutable in-memory table loaded from configuration.
type StaticDirectory struct {
	entries map[string]string
}

func NewStaticDirectory(entries map[string]string) *StaticDirectory {
	normalized := make(map[string]string, len(entries))
	for k, v := range entries {
		normalized[Normalize(k)] = strings.TrimSpace(v)
	}
	return &StaticDirectory{entries: normalized}
}

func (d *StaticDirectory) LookupUserID(_ context.Context, callerID string) (string, bool, error) {
	id, ok := d.entries[Normalize(callerID)]
	return id, ok && id != "", nil
}

func (d *StaticDirectory) Len() int {
	return len(d.entries)
}

// RedisDirectory reads a hash of normalized caller id -> user id.
type RedisDirectory struct {
	client redis.Cmdable
	key    string
}

func NewRedisDirectory(client redis.Cmdable, key string) *RedisDirectory {
	return &RedisDirectory{client: client, key: key}
}

func (d *RedisDirectory) LookupUserID(ctx context.Context, callerID string) (string, bool, error) {
	id, err := d.client.HGet(ctx, d.key, Normalize(callerID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}
	return id, id != "", nil
}

// Register stores a mapping; used by seeding tools and tests.
func (d *RedisDirectory) Register(ctx context.Context, callerID, userID string) error {
	if err := d.client.HSet(ctx, d.key, Normalize(callerID), userID).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}
	return nil
}

// Chain consults directories in order and returns the first hit.
type Chain []Directory

func (c Chain) LookupUserID(ctx context.Context, callerID string) (string, bool, error) {
	var firstErr error
	for _, d := range c {
		id, ok, err := d.LookupUserID(ctx, callerID)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if ok {
			return id, true, nil
		}
	}
	return "", false, firstErr
}
