package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Keys:
//
//	session:<id>            hash   session fields
//	session:<id>:messages   list   JSON messages, oldest first
//	user:<uid>:sessions     zset   session ids scored by updated_at
//	sessions:active         zset   active session ids scored by updated_at
const activeKey = "sessions:active"

// maxTxRetries bounds optimistic-lock retries when concurrent turns race on
// the same session.
const maxTxRetries = 5

// RedisStore implements Store on Redis. Every key of a session is refreshed
// to ttl on write.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

var _ Store = &RedisStore{}

// NewRedisStore connects to redisURL and verifies the connection.
func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisStoreFromClient(client, ttl), nil
}

func NewRedisStoreFromClient(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl, now: time.Now}
}

func sessionKey(id string) string  { return "session:" + id }
func messagesKey(id string) string { return "session:" + id + ":messages" }
func userKey(uid string) string    { return "user:" + uid + ":sessions" }

// score orders index entries by time with microsecond precision, which a
// float64 holds exactly.
func score(t time.Time) float64 {
	return float64(t.UnixMicro())
}

func (r *RedisStore) expire(ctx context.Context, pipe redis.Pipeliner, s *Session) {
	if r.ttl <= 0 {
		return
	}
	pipe.Expire(ctx, sessionKey(s.ID), r.ttl)
	pipe.Expire(ctx, messagesKey(s.ID), r.ttl)
	pipe.Expire(ctx, userKey(s.UserID), r.ttl)
}

func sessionFields(s *Session) map[string]any {
	return map[string]any{
		"id":            s.ID,
		"user_id":       s.UserID,
		"status":        string(s.Status),
		"created_at":    s.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":    s.UpdatedAt.Format(time.RFC3339Nano),
		"message_count": s.MessageCount,
	}
}

func parseSession(fields map[string]string) (*Session, error) {
	if len(fields) == 0 {
		return nil, ErrSessionNotFound
	}
	s := &Session{ID: fields["id"], UserID: fields["user_id"], Status: Status(fields["status"])}
	var err error
	if s.CreatedAt, err = time.Parse(time.RFC3339Nano, fields["created_at"]); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if s.UpdatedAt, err = time.Parse(time.RFC3339Nano, fields["updated_at"]); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	if s.MessageCount, err = strconv.Atoi(fields["message_count"]); err != nil {
		return nil, fmt.Errorf("failed to parse message_count: %w", err)
	}
	return s, nil
}

func (r *RedisStore) CreateSession(ctx context.Context, userID string) (*Session, error) {
	now := r.now().UTC()
	s := &Session{ID: uuid.NewString(), UserID: userID, Status: StatusActive, CreatedAt: now, UpdatedAt: now}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, sessionKey(s.ID), sessionFields(s))
		pipe.ZAdd(ctx, userKey(userID), redis.Z{Score: score(now), Member: s.ID})
		pipe.ZAdd(ctx, activeKey, redis.Z{Score: score(now), Member: s.ID})
		r.expire(ctx, pipe, s)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return s, nil
}

func (r *RedisStore) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	fields, err := r.client.HGetAll(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load session from Redis: %w", err)
	}
	return parseSession(fields)
}

func (r *RedisStore) ListSessions(ctx context.Context, userID string, opts ListOptions) ([]Session, error) {
	ids, err := r.client.ZRevRange(ctx, userKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	limit := limitOr(opts.Limit)
	out := []Session{}
	for _, id := range ids {
		s, err := r.GetSession(ctx, id)
		if errors.Is(err, ErrSessionNotFound) {
			// the hash expired before the index entry
			r.client.ZRem(ctx, userKey(userID), id)
			continue
		}
		if err != nil {
			return nil, err
		}
		if opts.Status != "" && s.Status != opts.Status {
			continue
		}
		out = append(out, *s)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// watch runs fn under WATCH on the session hash, retrying when a
// concurrent writer invalidates the transaction.
func (r *RedisStore) watch(ctx context.Context, sessionID string, fn func(tx *redis.Tx) error) error {
	for i := 0; i < maxTxRetries; i++ {
		err := r.client.Watch(ctx, fn, sessionKey(sessionID))
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("session %s: too much contention", sessionID)
}

func (r *RedisStore) AppendMessage(ctx context.Context, sessionID string, msg Message) (*Message, error) {
	msg.ID = uuid.NewString()
	msg.SessionID = sessionID

	var stored Message
	err := r.watch(ctx, sessionID, func(tx *redis.Tx) error {
		fields, err := tx.HGetAll(ctx, sessionKey(sessionID)).Result()
		if err != nil {
			return err
		}
		s, err := parseSession(fields)
		if err != nil {
			return err
		}
		if s.Status != StatusActive {
			return ErrSessionInactive
		}

		// taken per attempt so a retry after a lost race never writes an
		// updated_at older than the winner's
		now := r.now().UTC()
		if now.Before(s.UpdatedAt) {
			now = s.UpdatedAt
		}
		stored = msg
		if stored.Timestamp.IsZero() {
			stored.Timestamp = now
		}
		data, err := json.Marshal(stored)
		if err != nil {
			return fmt.Errorf("failed to marshal message: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.RPush(ctx, messagesKey(sessionID), data)
			pipe.HSet(ctx, sessionKey(sessionID), "updated_at", now.Format(time.RFC3339Nano))
			pipe.HIncrBy(ctx, sessionKey(sessionID), "message_count", 1)
			pipe.ZAdd(ctx, userKey(s.UserID), redis.Z{Score: score(now), Member: sessionID})
			pipe.ZAdd(ctx, activeKey, redis.Z{Score: score(now), Member: sessionID})
			r.expire(ctx, pipe, s)
			return nil
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *RedisStore) LastMessages(ctx context.Context, sessionID string, n int) ([]Message, error) {
	if n == 0 {
		return []Message{}, nil
	}
	start := int64(0)
	if n > 0 {
		start = int64(-n)
	}
	return r.messages(ctx, sessionID, start)
}

func (r *RedisStore) History(ctx context.Context, sessionID string) ([]Message, error) {
	return r.messages(ctx, sessionID, 0)
}

func (r *RedisStore) messages(ctx context.Context, sessionID string, start int64) ([]Message, error) {
	exists, err := r.client.Exists(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to check session existence: %w", err)
	}
	if exists == 0 {
		return nil, ErrSessionNotFound
	}

	raw, err := r.client.LRange(ctx, messagesKey(sessionID), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	out := make([]Message, 0, len(raw))
	for _, item := range raw {
		var m Message
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			return nil, fmt.Errorf("failed to parse message: %w", err)
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *RedisStore) SetStatus(ctx context.Context, sessionID string, status Status) error {
	return r.watch(ctx, sessionID, func(tx *redis.Tx) error {
		fields, err := tx.HGetAll(ctx, sessionKey(sessionID)).Result()
		if err != nil {
			return err
		}
		s, err := parseSession(fields)
		if err != nil {
			return err
		}
		if !s.Status.CanTransition(status) {
			return ErrInvalidTransition
		}
		now := r.now().UTC()
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, sessionKey(sessionID), "status", string(status), "updated_at", now.Format(time.RFC3339Nano))
			pipe.ZAdd(ctx, userKey(s.UserID), redis.Z{Score: score(now), Member: sessionID})
			pipe.ZRem(ctx, activeKey, sessionID)
			return nil
		})
		return err
	})
}

func (r *RedisStore) DeleteSession(ctx context.Context, sessionID string) error {
	s, err := r.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, sessionKey(sessionID), messagesKey(sessionID))
		pipe.ZRem(ctx, userKey(s.UserID), sessionID)
		pipe.ZRem(ctx, activeKey, sessionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (r *RedisStore) ExpireInactive(ctx context.Context, cutoff time.Time) (int, error) {
	ids, err := r.client.ZRangeByScore(ctx, activeKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff.UnixMicro(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to scan active sessions: %w", err)
	}

	n := 0
	for _, id := range ids {
		switch err := r.SetStatus(ctx, id, StatusExpired); {
		case err == nil:
			n++
		case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrInvalidTransition):
			r.client.ZRem(ctx, activeKey, id)
		default:
			return n, err
		}
	}
	return n, nil
}

// Ping checks the Redis connection.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
