// Package receipt reconciles delivery tickets against the gateway's
// receipts on a fixed interval, logging failures and evicting tickets
// whose outcome is settled.
package receipt

import (
	"context"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/emberchat/push-relay/internal/errlog"
	"github.com/emberchat/push-relay/internal/expo"
	"github.com/emberchat/push-relay/internal/model"
	"github.com/emberchat/push-relay/internal/ticketstore"
)

type Gateway interface {
	GetReceipts(ctx context.Context, ids []string) (map[string]expo.PushReceipt, error)
}

// diagnostics per gateway receipt error code
var receiptDiagnostics = map[string]string{
	expo.ErrorDeviceNotRegistered: "device token is no longer registered; it should stop receiving pushes",
	expo.ErrorMessageTooBig:       "notification payload exceeded the gateway size limit",
	expo.ErrorMessageRateExceeded: "gateway rate limit hit for this device; messages are being sent too quickly",
	expo.ErrorMismatchSenderID:    "push credentials do not match the device token's sender id",
	expo.ErrorInvalidCredentials:  "push credentials were rejected by the gateway",
}

type Service struct {
	gateway  Gateway
	tickets  ticketstore.Store
	errors   *errlog.Logger
	interval time.Duration
}

func New(gateway Gateway, tickets ticketstore.Store, errors *errlog.Logger, interval time.Duration) *Service {
	if interval <= 0 {
		interval = 900 * time.Second
	}
	return &Service{gateway: gateway, tickets: tickets, errors: errors, interval: interval}
}

// Run reconciles on the configured interval until ctx is cancelled. Cycles
// run one at a time on this goroutine: a cycle that outlasts the interval
// delays the next tick instead of overlapping it.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("receipt reconciler exiting")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single reconciliation cycle.
func (s *Service) RunOnce(ctx context.Context) {
	ok, failed, err := s.tickets.Partition(ctx)
	if err != nil {
		s.errors.Errorf("snapshotting ticket store: %v", err)
		return
	}

	// dispatch-time failures are terminal: log once, then evict
	if len(failed) > 0 {
		evict := make([]model.TicketID, 0, len(failed))
		for _, ticket := range failed {
			s.errors.Errorf("ticket %s failed at dispatch: %s", ticket.ID, ticket.Message)
			evict = append(evict, ticket.ID)
		}
		if err := s.tickets.Remove(ctx, evict); err != nil {
			s.errors.Errorf("evicting failed tickets: %v", err)
		}
	}

	ids := make([]string, 0, len(ok))
	for _, ticket := range ok {
		ids = append(ids, string(ticket.ID))
	}

	// one bad chunk never blocks the others; its tickets stay for the
	// next cycle
	for _, chunk := range expo.ChunkReceiptIDs(ids) {
		receipts, err := s.gateway.GetReceipts(ctx, chunk)
		if err != nil {
			s.errors.Errorf("fetching delivery receipts: %v", err)
			continue
		}

		settled := make([]model.TicketID, 0, len(receipts))
		for id, receipt := range receipts {
			if receipt.Status != expo.StatusOK {
				s.logFailure(id, receipt)
			}
			settled = append(settled, model.TicketID(id))
		}
		if err := s.tickets.Remove(ctx, settled); err != nil {
			s.errors.Errorf("evicting settled tickets: %v", err)
		}
	}
}

func (s *Service) logFailure(id string, receipt expo.PushReceipt) {
	code := ""
	if receipt.Details != nil {
		code = receipt.Details.Error
	}
	if diagnostic, known := receiptDiagnostics[code]; known {
		s.errors.Errorf("delivery of ticket %s failed: %s (%s: %s)", id, receipt.Message, code, diagnostic)
		return
	}
	if code != "" {
		s.errors.Errorf("delivery of ticket %s failed: %s (%s)", id, receipt.Message, code)
		return
	}
	s.errors.Errorf("delivery of ticket %s failed: %s", id, receipt.Message)
}
