package task

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jonwraymond/sheetbridge/mcperr"
)

// RedisStore is the distributed Store backend: tasks survive a single
// gateway instance restarting, at the cost of one round trip per call.
// Listing by session uses a Redis set per session id alongside the
// per-task hash.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore builds a RedisStore over an existing client.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) taskKey(id string) string    { return s.prefix + "task:" + id }
func (s *RedisStore) sessionKey(sid string) string { return s.prefix + "session:" + sid }

func (s *RedisStore) Create(ctx context.Context, sessionID, tool, paramsFingerprint string) (*Task, error) {
	now := time.Now()
	t := &Task{
		ID:                uuid.NewString(),
		SessionID:         sessionID,
		Tool:              tool,
		ParamsFingerprint: paramsFingerprint,
		State:             StateQueued,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	raw, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.taskKey(t.ID), raw, 0)
	pipe.SAdd(ctx, s.sessionKey(sessionID), t.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("task: create failed: %w", err)
	}
	return t, nil
}

func (s *RedisStore) Update(ctx context.Context, id string, patch Patch) (*Task, *mcperr.Error) {
	t, ok, err := s.Get(ctx, id)
	if err != nil {
		return nil, mcperr.Wrap(mcperr.KindInternal, "task lookup failed", err)
	}
	if !ok {
		return nil, mcperr.New(mcperr.KindNotFound, fmt.Sprintf("task %s not found", id))
	}
	if terminal[t.State] {
		return nil, mcperr.New(mcperr.KindPreconditionFail, fmt.Sprintf("task %s is already %s", id, t.State))
	}

	if patch.State != nil {
		t.State = *patch.State
	}
	if patch.Progress != nil {
		if *patch.Progress < t.Progress {
			return nil, mcperr.New(mcperr.KindInvalidParams, "progress must be monotonically non-decreasing")
		}
		t.Progress = *patch.Progress
	}
	if patch.Result != nil {
		t.Result = patch.Result
	}
	if patch.Err != nil {
		t.Err = *patch.Err
	}
	t.UpdatedAt = time.Now()

	raw, merr := json.Marshal(t)
	if merr != nil {
		return nil, mcperr.Wrap(mcperr.KindInternal, "task marshal failed", merr)
	}
	if err := s.client.Set(ctx, s.taskKey(id), raw, 0).Err(); err != nil {
		return nil, mcperr.Wrap(mcperr.KindInternal, "task update failed", err)
	}
	return t, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Task, bool, error) {
	raw, err := s.client.Get(ctx, s.taskKey(id)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var t Task
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, false, err
	}
	return &t, true, nil
}

func (s *RedisStore) Cancel(ctx context.Context, id string) (*Task, *mcperr.Error) {
	t, ok, err := s.Get(ctx, id)
	if err != nil {
		return nil, mcperr.Wrap(mcperr.KindInternal, "task lookup failed", err)
	}
	if !ok {
		return nil, mcperr.New(mcperr.KindNotFound, fmt.Sprintf("task %s not found", id))
	}
	if terminal[t.State] {
		return t, nil
	}
	t.State = StateCancelled
	t.UpdatedAt = time.Now()
	raw, merr := json.Marshal(t)
	if merr != nil {
		return nil, mcperr.Wrap(mcperr.KindInternal, "task marshal failed", merr)
	}
	if err := s.client.Set(ctx, s.taskKey(id), raw, 0).Err(); err != nil {
		return nil, mcperr.Wrap(mcperr.KindInternal, "task cancel failed", err)
	}
	return t, nil
}

func (s *RedisStore) List(ctx context.Context, sessionID string) ([]*Task, error) {
	ids, err := s.client.SMembers(ctx, s.sessionKey(sessionID)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*Task, 0, len(ids))
	for _, id := range ids {
		t, ok, err := s.Get(ctx, id)
		if err != nil || !ok {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

var _ Store = (*RedisStore)(nil)
