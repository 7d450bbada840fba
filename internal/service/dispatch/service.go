// Package dispatch submits outbound push messages to the gateway in
// gateway-sized batches and records the returned delivery tickets.
package dispatch

import (
	"context"
	"fmt"

	"github.com/emberchat/push-relay/internal/errlog"
	"github.com/emberchat/push-relay/internal/expo"
	"github.com/emberchat/push-relay/internal/model"
	"github.com/emberchat/push-relay/internal/ticketstore"
)

type Gateway interface {
	SendMessages(ctx context.Context, messages []expo.PushMessage) ([]expo.PushTicket, error)
}

type Service struct {
	gateway Gateway
	tickets ticketstore.Store
	errors  *errlog.Logger
}

func New(gateway Gateway, tickets ticketstore.Store, errors *errlog.Logger) *Service {
	return &Service{gateway: gateway, tickets: tickets, errors: errors}
}

// Send submits messages chunk by chunk, appending each chunk's tickets to
// the store before moving on. A failed chunk aborts the remaining chunks
// of this invocation; tickets already stored stay stored.
func (s *Service) Send(ctx context.Context, messages []expo.PushMessage) error {
	for _, chunk := range expo.ChunkMessages(messages) {
		returned, err := s.gateway.SendMessages(ctx, chunk)
		if err != nil {
			return fmt.Errorf("dispatching push chunk: %w", err)
		}

		tickets := make([]model.DeliveryTicket, 0, len(returned))
		for _, ticket := range returned {
			converted := model.DeliveryTicket{
				ID:      model.TicketID(ticket.ID),
				Status:  ticket.Status,
				Message: ticket.Message,
			}
			if !converted.OK() {
				s.errors.Errorf("push rejected at dispatch: %s", ticket.Message)
			}
			tickets = append(tickets, converted)
		}

		if err := s.tickets.Append(ctx, tickets); err != nil {
			return fmt.Errorf("storing delivery tickets: %w", err)
		}
	}
	return nil
}
