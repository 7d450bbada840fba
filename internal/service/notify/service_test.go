package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/emberchat/push-relay/internal/expo"
	"github.com/emberchat/push-relay/internal/model"
	"github.com/emberchat/push-relay/internal/pbclient"
)

type fakeStore struct {
	users      map[string]*model.User
	members    map[string][]model.User
	tokens     map[string][]model.PushToken
	tokenCalls [][]string
	failUser   bool
}

func (s *fakeStore) User(ctx context.Context, id string) (*model.User, error) {
	if s.failUser {
		return nil, errors.New("store unreachable")
	}
	user, ok := s.users[id]
	if !ok {
		return nil, model.ErrorRecordNotFound
	}
	return user, nil
}

func (s *fakeStore) UsersInGroup(ctx context.Context, groupID string) ([]model.User, error) {
	return s.members[groupID], nil
}

func (s *fakeStore) PushTokensForAnyUser(ctx context.Context, userIDs []string) ([]model.PushToken, error) {
	s.tokenCalls = append(s.tokenCalls, userIDs)
	var out []model.PushToken
	for _, id := range userIDs {
		out = append(out, s.tokens[id]...)
	}
	return out, nil
}

type fakeDispatcher struct {
	sent [][]expo.PushMessage
	err  error
}

func (d *fakeDispatcher) Send(ctx context.Context, messages []expo.PushMessage) error {
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, messages)
	return nil
}

func user(id string, name string, groups ...string) *model.User {
	return &model.User{Record: model.Record{ID: id}, Name: name, JoinedGroups: groups}
}

func messageEvent(t *testing.T, action string, message model.Message) pbclient.RecordEvent {
	t.Helper()
	record, err := json.Marshal(message)
	if err != nil {
		t.Fatalf("marshalling record: %+v", err)
	}
	return pbclient.RecordEvent{Action: action, Record: record}
}

func groupFixture() *fakeStore {
	return &fakeStore{
		users: map[string]*model.User{
			"u1": user("u1", "Alice", "g1"),
			"u2": user("u2", "Bob", "g1"),
			"u3": user("u3", "Carol", "g1"),
		},
		members: map[string][]model.User{
			"g1": {*user("u1", "Alice", "g1"), *user("u2", "Bob", "g1"), *user("u3", "Carol", "g1")},
		},
		tokens: map[string][]model.PushToken{
			"u2": {{Record: model.Record{ID: "pt1"}, PushToken: "tokA", User: "u2"}},
			"u3": {{Record: model.Record{ID: "pt2"}, PushToken: "tokB", User: "u3"}},
		},
	}
}

func TestHandleMessageEvent(t *testing.T) {
	assert := assert.New(t)

	store := groupFixture()
	dispatcher := &fakeDispatcher{}
	service := New(store, dispatcher)

	message := model.Message{Record: model.Record{ID: "m1"}, Group: "g1", From: "u1", Text: "hi"}
	err := service.HandleMessageEvent(context.Background(), messageEvent(t, pbclient.ActionCreate, message))
	assert.Nil(err)

	// sender is excluded from token resolution
	assert.Equal([][]string{{"u2", "u3"}}, store.tokenCalls)

	assert.Len(dispatcher.sent, 1)
	sent := dispatcher.sent[0]
	assert.Len(sent, 2)

	addresses := []string{sent[0].To, sent[1].To}
	assert.Equal([]string{"tokA", "tokB"}, addresses)

	for _, pushMessage := range sent {
		assert.Equal("New message from Alice", pushMessage.Title)
		assert.Equal("hi", pushMessage.Body)
		assert.Equal("high", pushMessage.Priority)
		assert.Equal("default", pushMessage.Sound)
		assert.Equal(1, pushMessage.Badge)
		assert.Equal(message, pushMessage.Data)
	}
}

func TestHandleMessageEventIgnoresOtherActions(t *testing.T) {
	assert := assert.New(t)

	store := groupFixture()
	dispatcher := &fakeDispatcher{}
	service := New(store, dispatcher)

	message := model.Message{Record: model.Record{ID: "m1"}, Group: "g1", From: "u1", Text: "hi"}
	for _, action := range []string{pbclient.ActionUpdate, pbclient.ActionDelete} {
		err := service.HandleMessageEvent(context.Background(), messageEvent(t, action, message))
		assert.Nil(err)
	}

	assert.Empty(store.tokenCalls)
	assert.Empty(dispatcher.sent)
}

func TestHandleMessageEventNoOtherMembers(t *testing.T) {
	assert := assert.New(t)

	store := groupFixture()
	store.members["g1"] = []model.User{*user("u1", "Alice", "g1")}
	dispatcher := &fakeDispatcher{}
	service := New(store, dispatcher)

	message := model.Message{Record: model.Record{ID: "m1"}, Group: "g1", From: "u1", Text: "hi"}
	err := service.HandleMessageEvent(context.Background(), messageEvent(t, pbclient.ActionCreate, message))
	assert.Nil(err)

	// nobody to notify: no token lookup, no dispatch
	assert.Empty(store.tokenCalls)
	assert.Empty(dispatcher.sent)
}

func TestHandleMessageEventResolutionFailure(t *testing.T) {
	assert := assert.New(t)

	store := groupFixture()
	store.failUser = true
	dispatcher := &fakeDispatcher{}
	service := New(store, dispatcher)

	message := model.Message{Record: model.Record{ID: "m1"}, Group: "g1", From: "u1", Text: "hi"}
	err := service.HandleMessageEvent(context.Background(), messageEvent(t, pbclient.ActionCreate, message))
	assert.NotNil(err)
	assert.Contains(err.Error(), "resolving sender")
	assert.Empty(dispatcher.sent)
}

func TestHandleMessageEventBadRecord(t *testing.T) {
	assert := assert.New(t)

	service := New(groupFixture(), &fakeDispatcher{})
	err := service.HandleMessageEvent(context.Background(), pbclient.RecordEvent{
		Action: pbclient.ActionCreate,
		Record: json.RawMessage(`{"group":42}`),
	})
	assert.NotNil(err)
	assert.Contains(err.Error(), "unmarshalling message record")
}
