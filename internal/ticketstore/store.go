// Package ticketstore holds delivery tickets between dispatch and receipt
// reconciliation. The dispatcher appends, the reconciler snapshots and
// removes tickets whose outcome is settled.
package ticketstore

import (
	"context"
	"fmt"

	"github.com/emberchat/push-relay/internal/boot"
	"github.com/emberchat/push-relay/internal/model"
)

type Store interface {
	// Append adds tickets in submission order.
	Append(ctx context.Context, tickets []model.DeliveryTicket) error
	// Partition snapshots the current tickets split by dispatch status,
	// each subset in append order.
	Partition(ctx context.Context) (ok []model.DeliveryTicket, failed []model.DeliveryTicket, err error)
	// Remove evicts settled tickets by id.
	Remove(ctx context.Context, ids []model.TicketID) error
	Ping(ctx context.Context) error
	Close() error
}

// New selects a backend from configuration; memory is the default.
func New(ctx context.Context, config *boot.Config) (Store, error) {
	switch config.Tickets.Backend {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite":
		return NewSqlite(config.Tickets.SqlitePath)
	case "redis":
		return NewRedis(ctx, config.Tickets.RedisURL)
	default:
		return nil, fmt.Errorf("unknown ticket store backend: %s", config.Tickets.Backend)
	}
}

func partition(tickets []model.DeliveryTicket) (ok []model.DeliveryTicket, failed []model.DeliveryTicket) {
	for _, ticket := range tickets {
		if ticket.OK() {
			ok = append(ok, ticket)
		} else {
			failed = append(failed, ticket)
		}
	}
	return ok, failed
}
