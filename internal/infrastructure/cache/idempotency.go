package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"voltstock/internal/core/apperror"
	"voltstock/internal/core/idempotency"
)

const keyPrefix = "idempotency:"

// record is the JSON value stored under each key.
type record struct {
	ActorID     string             `json:"actor_id"`
	Operation   string             `json:"operation"`
	RequestHash string             `json:"request_hash"`
	Status      idempotency.Status `json:"status"`
	StatusCode  int                `json:"status_code,omitempty"`
	ContentType string             `json:"content_type,omitempty"`
	Response    json.RawMessage    `json:"response,omitempty"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// IdempotencyStore keeps idempotency keys in Redis with a TTL.
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

var _ idempotency.Store = (*IdempotencyStore)(nil)

// NewIdempotencyStore creates a store whose keys expire after ttl.
func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = idempotency.DefaultTTL
	}
	return &IdempotencyStore{
		client: client,
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// AcquireKey implements idempotency.Store.
func (s *IdempotencyStore) AcquireKey(ctx context.Context, scope idempotency.Scope, requestHash string) (*idempotency.Replay, error) {
	redisKey := keyPrefix + scope.String()
	fresh := record{
		ActorID:     scope.ActorID,
		Operation:   scope.Operation,
		RequestHash: requestHash,
		Status:      idempotency.StatusPending,
		UpdatedAt:   s.now(),
	}
	payload, err := json.Marshal(fresh)
	if err != nil {
		return nil, fmt.Errorf("marshal idempotency record: %w", err)
	}

	ok, err := s.client.SetNX(ctx, redisKey, payload, s.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire idempotency key: %w", err)
	}
	if ok {
		return nil, nil
	}

	var replay *idempotency.Replay
	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		existing, err := load(ctx, tx, redisKey)
		if err != nil {
			return err
		}
		if existing == nil {
			// Expired between SETNX and GET.
			_, err := tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
				p.Set(ctx, redisKey, payload, s.ttl)
				return nil
			})
			return err
		}

		if existing.RequestHash != requestHash {
			return apperror.NewIdempotencyMismatch(scope.Key)
		}

		switch existing.Status {
		case idempotency.StatusSuccess, idempotency.StatusFailed:
			replay = &idempotency.Replay{
				StatusCode:  idempotency.NormalizeStatus(existing.StatusCode),
				ContentType: idempotency.NormalizeContentType(existing.ContentType),
				Body:        existing.Response,
			}
			return nil
		}

		if s.now().Sub(existing.UpdatedAt) <= idempotency.StaleAfter {
			return apperror.NewIdempotencyConflict(scope.Key)
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, redisKey, payload, s.ttl)
			return nil
		})
		return err
	}, redisKey)

	if errors.Is(err, redis.TxFailedErr) {
		return nil, apperror.NewIdempotencyConflict(scope.Key)
	}
	if err != nil {
		if _, ok := apperror.AsAppError(err); ok {
			return nil, err
		}
		return nil, fmt.Errorf("acquire idempotency key: %w", err)
	}
	return replay, nil
}

// CompleteKey implements idempotency.Store.
func (s *IdempotencyStore) CompleteKey(ctx context.Context, scope idempotency.Scope, statusCode int, contentType string, response any) error {
	body, err := marshalResponse(response)
	if err != nil {
		return err
	}
	return s.finish(ctx, scope, idempotency.StatusSuccess, statusCode, contentType, body)
}

// FailKey implements idempotency.Store.
func (s *IdempotencyStore) FailKey(ctx context.Context, scope idempotency.Scope, statusCode int, contentType string, response any) error {
	body, err := marshalResponse(response)
	if err != nil {
		body, _ = json.Marshal(map[string]string{"error": err.Error()})
	}
	return s.finish(ctx, scope, idempotency.StatusFailed, statusCode, contentType, body)
}

// ReleaseKey implements idempotency.Store. Completed keys are kept.
func (s *IdempotencyStore) ReleaseKey(ctx context.Context, scope idempotency.Scope) error {
	redisKey := keyPrefix + scope.String()
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		rec, err := load(ctx, tx, redisKey)
		if err != nil || rec == nil || rec.Status != idempotency.StatusPending {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Del(ctx, redisKey)
			return nil
		})
		return err
	}, redisKey)
	if err != nil && !errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

func (s *IdempotencyStore) finish(ctx context.Context, scope idempotency.Scope, status idempotency.Status, statusCode int, contentType string, body []byte) error {
	redisKey := keyPrefix + scope.String()

	rec, err := load(ctx, s.client, redisKey)
	if err != nil {
		return err
	}
	if rec == nil {
		return nil
	}
	rec.Status = status
	rec.StatusCode = statusCode
	rec.ContentType = contentType
	rec.Response = body
	rec.UpdatedAt = s.now()

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal idempotency record: %w", err)
	}
	if err := s.client.SetArgs(ctx, redisKey, payload, redis.SetArgs{KeepTTL: true}).Err(); err != nil {
		return fmt.Errorf("finish idempotency key: %w", err)
	}
	return nil
}

func load(ctx context.Context, c redis.Cmdable, redisKey string) (*record, error) {
	raw, err := c.Get(ctx, redisKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load idempotency key: %w", err)
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode idempotency key: %w", err)
	}
	return &rec, nil
}

func marshalResponse(response any) ([]byte, error) {
	if response == nil {
		return nil, nil
	}
	b, err := json.Marshal(response)
	if err != nil {
		return nil, fmt.Errorf("marshal response: %w", err)
	}
	return b, nil
}
