// Package notify turns message-created events from the data store into a
// push fan-out to the message's group, excluding the sender.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/emberchat/push-relay/internal/expo"
	"github.com/emberchat/push-relay/internal/model"
	"github.com/emberchat/push-relay/internal/pbclient"
)

type Store interface {
	User(ctx context.Context, id string) (*model.User, error)
	UsersInGroup(ctx context.Context, groupID string) ([]model.User, error)
	PushTokensForAnyUser(ctx context.Context, userIDs []string) ([]model.PushToken, error)
}

type Dispatcher interface {
	Send(ctx context.Context, messages []expo.PushMessage) error
}

type Service struct {
	store      Store
	dispatcher Dispatcher
}

func New(store Store, dispatcher Dispatcher) *Service {
	return &Service{store: store, dispatcher: dispatcher}
}

// HandleMessageEvent reacts to one record-change event on the messages
// collection. Only creations fan out; updates and deletes are ignored.
func (s *Service) HandleMessageEvent(ctx context.Context, event pbclient.RecordEvent) error {
	if event.Action != pbclient.ActionCreate {
		return nil
	}

	var message model.Message
	if err := json.Unmarshal(event.Record, &message); err != nil {
		return fmt.Errorf("unmarshalling message record: %w", err)
	}

	sender, err := s.store.User(ctx, message.From)
	if err != nil {
		return fmt.Errorf("resolving sender: %w", err)
	}

	members, err := s.store.UsersInGroup(ctx, message.Group)
	if err != nil {
		return fmt.Errorf("resolving group members: %w", err)
	}

	recipients := make([]string, 0, len(members))
	for _, member := range members {
		if member.ID != message.From {
			recipients = append(recipients, member.ID)
		}
	}
	if len(recipients) == 0 {
		return nil
	}

	tokens, err := s.store.PushTokensForAnyUser(ctx, recipients)
	if err != nil {
		return fmt.Errorf("resolving push tokens: %w", err)
	}
	if len(tokens) == 0 {
		return nil
	}

	messages := make([]expo.PushMessage, 0, len(tokens))
	for _, token := range tokens {
		messages = append(messages, expo.PushMessage{
			To:       token.PushToken,
			Title:    fmt.Sprintf("New message from %s", sender.Name),
			Body:     message.Text,
			Data:     message,
			Priority: "high",
			Sound:    "default",
			Badge:    1,
		})
	}

	if err := s.dispatcher.Send(ctx, messages); err != nil {
		return fmt.Errorf("dispatching message fan-out: %w", err)
	}
	return nil
}
