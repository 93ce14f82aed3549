package memberdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clubops/guardrail/guard"
)

// Member is one club member record.
type Member struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Tier     string    `json:"tier"`
	JoinedAt time.Time `json:"joined_at"`
	Active   bool      `json:"active"`
}

// Store reads and writes member records through a protected executor.
type Store struct {
	rdb  redis.Cmdable
	exec *guard.Executor

	prefix string
	ttl    time.Duration
}

// StoreOption customizes a Store.
type StoreOption func(*Store)

// WithPrefix overrides the key prefix. Default: "clubops:member".
func WithPrefix(prefix string) StoreOption {
	return func(s *Store) { s.prefix = strings.Trim(prefix, ":") }
}

// WithTTL sets an expiry on member keys. Zero means keys never expire.
func WithTTL(d time.Duration) StoreOption {
	return func(s *Store) { s.ttl = d }
}

// NewStore creates a member store over the given Redis client. All
// commands run through exec.
func NewStore(rdb redis.Cmdable, exec *guard.Executor, opts ...StoreOption) (*Store, error) {
	if rdb == nil {
		return nil, errors.New("memberdb: redis client is required")
	}
	if exec == nil {
		return nil, errors.New("memberdb: executor is required")
	}

	s := &Store{
		rdb:    rdb,
		exec:   exec,
		prefix: "clubops:member",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) key(id string) string {
	return s.prefix + ":" + id
}

// Get fetches one member by ID.
func (s *Store) Get(ctx context.Context, id string) (*Member, error) {
	return guard.Run(ctx, s.exec, func(ctx context.Context) (*Member, error) {
		data, err := s.rdb.Get(ctx, s.key(id)).Bytes()
		if err != nil {
			return nil, classify(fmt.Errorf("memberdb: get %s: %w", id, err))
		}

		var member Member
		if err := json.Unmarshal(data, &member); err != nil {
			return nil, guard.Classify(guard.CategoryInternal, fmt.Errorf("memberdb: decoding %s: %w", id, err))
		}
		return &member, nil
	})
}

// Put stores a member record, overwriting any previous version.
func (s *Store) Put(ctx context.Context, member Member) error {
	if member.ID == "" {
		return guard.Classify(guard.CategoryValidation, errors.New("memberdb: member ID is required"))
	}

	data, err := json.Marshal(member)
	if err != nil {
		return guard.Classify(guard.CategoryValidation, fmt.Errorf("memberdb: encoding %s: %w", member.ID, err))
	}

	return s.exec.Execute(ctx, func(ctx context.Context) error {
		if err := s.rdb.Set(ctx, s.key(member.ID), data, s.ttl).Err(); err != nil {
			return classify(fmt.Errorf("memberdb: put %s: %w", member.ID, err))
		}
		return nil
	})
}

// Delete removes a member record. Deleting a missing member is a
// not-found failure.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.exec.Execute(ctx, func(ctx context.Context) error {
		removed, err := s.rdb.Del(ctx, s.key(id)).Result()
		if err != nil {
			return classify(fmt.Errorf("memberdb: delete %s: %w", id, err))
		}
		if removed == 0 {
			return guard.Classify(guard.CategoryNotFound, fmt.Errorf("memberdb: member %s not found", id))
		}
		return nil
	})
}

// RecordVisit bumps the member's visit counter for the current day.
// Counters expire after 90 days.
func (s *Store) RecordVisit(ctx context.Context, id string, at time.Time) error {
	if at.IsZero() {
		at = time.Now()
	}

	return s.exec.Execute(ctx, func(ctx context.Context) error {
		key := fmt.Sprintf("%s:visits:%s", s.prefix, at.UTC().Format("20060102"))

		pipe := s.rdb.Pipeline()
		pipe.HIncrBy(ctx, key, id, 1)
		pipe.Expire(ctx, key, 90*24*time.Hour)
		if _, err := pipe.Exec(ctx); err != nil {
			return classify(fmt.Errorf("memberdb: recording visit for %s: %w", id, err))
		}
		return nil
	})
}

// Ping checks Redis reachability through the executor, so a tripped
// breaker surfaces here too.
func (s *Store) Ping(ctx context.Context) error {
	return s.exec.Execute(ctx, func(ctx context.Context) error {
		if err := s.rdb.Ping(ctx).Err(); err != nil {
			return classify(fmt.Errorf("memberdb: ping: %w", err))
		}
		return nil
	})
}

// classify maps Redis errors to failure categories. A missing key is
// terminal; everything else is assumed transient.
func classify(err error) error {
	if errors.Is(err, redis.Nil) {
		return guard.Classify(guard.CategoryNotFound, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return guard.Classify(guard.CategoryTimeout, err)
	}
	return guard.Classify(guard.CategoryUnavailable, err)
}
