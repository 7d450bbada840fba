package pbclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/emberchat/push-relay/internal/model"
)

func (c *Client) User(ctx context.Context, id string) (*model.User, error) {
	user := &model.User{}
	if err := c.get(ctx, "/api/collections/"+model.CollectionUsers+"/records/"+id, nil, user); err != nil {
		return nil, fmt.Errorf("fetching user %s: %w", id, err)
	}
	return user, nil
}

// UsersInGroup lists every user whose joinedGroups set contains the group.
func (c *Client) UsersInGroup(ctx context.Context, groupID string) ([]model.User, error) {
	filter := fmt.Sprintf(`joinedGroups.id ?= %q`, groupID)

	var users []model.User
	err := c.fullList(ctx, model.CollectionUsers, filter, func(items json.RawMessage) error {
		var page []model.User
		if err := json.Unmarshal(items, &page); err != nil {
			return fmt.Errorf("unmarshalling users: %w", err)
		}
		users = append(users, page...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (c *Client) listPushTokens(ctx context.Context, filter string) ([]model.PushToken, error) {
	var tokens []model.PushToken
	err := c.fullList(ctx, model.CollectionPushTokens, filter, func(items json.RawMessage) error {
		var page []model.PushToken
		if err := json.Unmarshal(items, &page); err != nil {
			return fmt.Errorf("unmarshalling push tokens: %w", err)
		}
		tokens = append(tokens, page...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

func (c *Client) AllPushTokens(ctx context.Context) ([]model.PushToken, error) {
	return c.listPushTokens(ctx, "")
}

// PushTokensForAnyUser lists the tokens owned by any of the given users.
func (c *Client) PushTokensForAnyUser(ctx context.Context, userIDs []string) ([]model.PushToken, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	return c.listPushTokens(ctx, joinUserFilter(userIDs, " || "))
}

// PushTokensMatchingAll lists tokens matching every given user id at once.
// Note the && join: a token belongs to exactly one user, so with more than
// one id this matches nothing.
// TODO: confirm whether multi-user targeting should be an || union instead.
func (c *Client) PushTokensMatchingAll(ctx context.Context, userIDs []string) ([]model.PushToken, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	return c.listPushTokens(ctx, joinUserFilter(userIDs, " && "))
}

func joinUserFilter(userIDs []string, separator string) string {
	clauses := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		clauses = append(clauses, fmt.Sprintf(`user.id=%q`, id))
	}
	return strings.Join(clauses, separator)
}
