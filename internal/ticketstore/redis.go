package ticketstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/emberchat/push-relay/internal/model"
)

const (
	redisSeqKey   = "tickets:seq"
	redisOrderKey = "tickets:order"
	redisBySeqKey = "tickets:byseq"
)

// redisStore keeps tickets in redis so several relay instances can share
// one pending-ticket collection: a list preserves append order and a hash
// holds the ticket bodies. Entries are keyed by a store-side sequence
// rather than the gateway ticket id, since tickets rejected at dispatch
// carry no id at all.
type redisStore struct {
	rdb *redis.Client
}

func NewRedis(ctx context.Context, redisURL string) (*redisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 2 * time.Second
	opts.WriteTimeout = 2 * time.Second
	opts.MaxRetries = 3

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return &redisStore{rdb}, nil
}

func (s *redisStore) Append(ctx context.Context, tickets []model.DeliveryTicket) error {
	if len(tickets) == 0 {
		return nil
	}

	pipe := s.rdb.TxPipeline()
	for _, ticket := range tickets {
		payload, err := json.Marshal(ticket)
		if err != nil {
			return fmt.Errorf("marshalling ticket: %w", err)
		}
		seq, err := s.rdb.Incr(ctx, redisSeqKey).Result()
		if err != nil {
			return fmt.Errorf("allocating ticket sequence: %w", err)
		}
		key := fmt.Sprint(seq)
		pipe.RPush(ctx, redisOrderKey, key)
		pipe.HSet(ctx, redisBySeqKey, key, payload)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("appending tickets: %w", err)
	}
	return nil
}

// list returns the stored tickets in append order alongside their
// sequence keys.
func (s *redisStore) list(ctx context.Context) ([]string, []model.DeliveryTicket, error) {
	keys, err := s.rdb.LRange(ctx, redisOrderKey, 0, -1).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("listing ticket order: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil, nil
	}

	bodies, err := s.rdb.HMGet(ctx, redisBySeqKey, keys...).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("fetching tickets: %w", err)
	}

	tickets := make([]model.DeliveryTicket, 0, len(bodies))
	for _, body := range bodies {
		raw, ok := body.(string)
		if !ok {
			continue
		}
		var ticket model.DeliveryTicket
		if err := json.Unmarshal([]byte(raw), &ticket); err != nil {
			return nil, nil, fmt.Errorf("unmarshalling ticket: %w", err)
		}
		tickets = append(tickets, ticket)
	}
	return keys, tickets, nil
}

func (s *redisStore) Partition(ctx context.Context) ([]model.DeliveryTicket, []model.DeliveryTicket, error) {
	_, tickets, err := s.list(ctx)
	if err != nil {
		return nil, nil, err
	}

	ok, failed := partition(tickets)
	return ok, failed, nil
}

func (s *redisStore) Remove(ctx context.Context, ids []model.TicketID) error {
	if len(ids) == 0 {
		return nil
	}

	evict := make(map[model.TicketID]struct{}, len(ids))
	for _, id := range ids {
		evict[id] = struct{}{}
	}

	keys, tickets, err := s.list(ctx)
	if err != nil {
		return err
	}

	pipe := s.rdb.TxPipeline()
	for i, ticket := range tickets {
		if _, gone := evict[ticket.ID]; !gone {
			continue
		}
		pipe.LRem(ctx, redisOrderKey, 0, keys[i])
		pipe.HDel(ctx, redisBySeqKey, keys[i])
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("removing tickets: %w", err)
	}
	return nil
}

func (s *redisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *redisStore) Close() error {
	return s.rdb.Close()
}
