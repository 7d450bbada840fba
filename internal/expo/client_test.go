package expo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSendMessages(t *testing.T) {
	assert := assert.New(t)

	var gotAuth string
	var gotMessages []PushMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(http.MethodPost, r.Method)
		assert.Equal("/push/send", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")

		err := json.NewDecoder(r.Body).Decode(&gotMessages)
		assert.Nil(err)

		tickets := make([]PushTicket, 0, len(gotMessages))
		for i := range gotMessages {
			tickets = append(tickets, PushTicket{ID: fmt.Sprintf("ticket-%d", i), Status: StatusOK})
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"data": tickets})
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret-token")
	tickets, err := client.SendMessages(context.Background(), []PushMessage{
		{To: "tokA", Title: "hello", Body: "world", Priority: "high", Sound: "default", Badge: 1},
		{To: "tokB", Title: "hello", Body: "world", Priority: "high", Sound: "default", Badge: 1},
	})
	assert.Nil(err)
	assert.Len(tickets, 2)
	assert.Equal("ticket-0", tickets[0].ID)
	assert.Equal(StatusOK, tickets[1].Status)
	assert.Equal("Bearer secret-token", gotAuth)
	assert.Equal("tokA", gotMessages[0].To)
}

func TestSendMessagesErrorTicket(t *testing.T) {
	assert := assert.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"status":"error","message":"\"tokX\" is not a registered push notification recipient","details":{"error":"DeviceNotRegistered"}}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	tickets, err := client.SendMessages(context.Background(), []PushMessage{{To: "tokX"}})
	assert.Nil(err)
	assert.Len(tickets, 1)
	assert.Equal(StatusError, tickets[0].Status)
	assert.NotNil(tickets[0].Details)
	assert.Equal(ErrorDeviceNotRegistered, tickets[0].Details.Error)
}

func TestSendMessagesGatewayFailure(t *testing.T) {
	assert := assert.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	_, err := client.SendMessages(context.Background(), []PushMessage{{To: "tokA"}})
	assert.NotNil(err)
	assert.Contains(err.Error(), "502")
}

func TestGetReceipts(t *testing.T) {
	assert := assert.New(t)

	var gotIDs []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal("/push/getReceipts", r.URL.Path)

		var request struct {
			IDs []string `json:"ids"`
		}
		err := json.NewDecoder(r.Body).Decode(&request)
		assert.Nil(err)
		gotIDs = request.IDs

		w.Write([]byte(`{"data":{
			"t1":{"status":"ok"},
			"t2":{"status":"error","message":"rate limited","details":{"error":"MessageRateExceeded"}}
		}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	receipts, err := client.GetReceipts(context.Background(), []string{"t1", "t2", "t3"})
	assert.Nil(err)
	assert.Equal([]string{"t1", "t2", "t3"}, gotIDs)
	assert.Len(receipts, 2)
	assert.Equal(StatusOK, receipts["t1"].Status)
	assert.Equal(ErrorMessageRateExceeded, receipts["t2"].Details.Error)

	_, pending := receipts["t3"]
	assert.False(pending)
}

func TestChunkMessages(t *testing.T) {
	assert := assert.New(t)

	messages := make([]PushMessage, 250)
	for i := range messages {
		messages[i].To = fmt.Sprintf("tok-%d", i)
	}

	chunks := ChunkMessages(messages)
	assert.Len(chunks, 3)
	assert.Len(chunks[0], 100)
	assert.Len(chunks[1], 100)
	assert.Len(chunks[2], 50)
	assert.Equal("tok-0", chunks[0][0].To)
	assert.Equal("tok-249", chunks[2][49].To)

	assert.Empty(ChunkMessages(nil))
}

func TestChunkReceiptIDs(t *testing.T) {
	assert := assert.New(t)

	ids := make([]string, 301)
	for i := range ids {
		ids[i] = fmt.Sprintf("t-%d", i)
	}

	chunks := ChunkReceiptIDs(ids)
	assert.Len(chunks, 2)
	assert.Len(chunks[0], 300)
	assert.Len(chunks[1], 1)
	assert.Equal("t-300", chunks[1][0])

	assert.Empty(ChunkReceiptIDs(nil))
}
