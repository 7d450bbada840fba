// Package expo talks to an Expo-compatible push gateway: submitting
// message batches for tickets and fetching delivery receipts by ticket id.
package expo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	DefaultBaseURL = "https://exp.host/--/api/v2"

	StatusOK    = "ok"
	StatusError = "error"

	// Gateway-imposed batch limits.
	MessageChunkLimit   = 100
	ReceiptIDChunkLimit = 300
)

// Receipt error codes the gateway reports for individual messages.
const (
	ErrorDeviceNotRegistered = "DeviceNotRegistered"
	ErrorMessageTooBig       = "MessageTooBig"
	ErrorMessageRateExceeded = "MessageRateExceeded"
	ErrorMismatchSenderID    = "MismatchSenderId"
	ErrorInvalidCredentials  = "InvalidCredentials"
)

type PushMessage struct {
	To       string      `json:"to"`
	Title    string      `json:"title,omitempty"`
	Body     string      `json:"body,omitempty"`
	Data     interface{} `json:"data,omitempty"`
	Priority string      `json:"priority,omitempty"`
	Sound    string      `json:"sound,omitempty"`
	Badge    int         `json:"badge,omitempty"`
	TTL      int         `json:"ttl,omitempty"`
}

type ErrorDetails struct {
	Error string `json:"error,omitempty"`
}

type PushTicket struct {
	ID      string        `json:"id,omitempty"`
	Status  string        `json:"status"`
	Message string        `json:"message,omitempty"`
	Details *ErrorDetails `json:"details,omitempty"`
}

type PushReceipt struct {
	Status  string        `json:"status"`
	Message string        `json:"message,omitempty"`
	Details *ErrorDetails `json:"details,omitempty"`
}

type Client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
}

func NewClient(baseURL string, accessToken string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:     baseURL,
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
	}
}

// SendMessages submits one batch of messages; callers are responsible for
// keeping the batch within MessageChunkLimit (see ChunkMessages). Tickets
// come back in submission order.
func (c *Client) SendMessages(ctx context.Context, messages []PushMessage) ([]PushTicket, error) {
	var response struct {
		Data []PushTicket `json:"data"`
	}
	if err := c.post(ctx, "/push/send", messages, &response); err != nil {
		return nil, fmt.Errorf("submitting push batch: %w", err)
	}
	if len(response.Data) != len(messages) {
		return nil, fmt.Errorf("gateway returned %d tickets for %d messages", len(response.Data), len(messages))
	}
	return response.Data, nil
}

// GetReceipts fetches delivery outcomes for one batch of ticket ids.
// Receipts not yet available are simply absent from the result.
func (c *Client) GetReceipts(ctx context.Context, ids []string) (map[string]PushReceipt, error) {
	request := struct {
		IDs []string `json:"ids"`
	}{IDs: ids}

	var response struct {
		Data map[string]PushReceipt `json:"data"`
	}
	if err := c.post(ctx, "/push/getReceipts", request, &response); err != nil {
		return nil, fmt.Errorf("fetching push receipts: %w", err)
	}
	return response.Data, nil
}

func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshalling request: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/json")
	if c.accessToken != "" {
		request.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("calling gateway: %w", err)
	}
	defer response.Body.Close()

	raw, err := io.ReadAll(response.Body)
	if err != nil {
		return fmt.Errorf("reading gateway response: %w", err)
	}
	if response.StatusCode < 200 || response.StatusCode > 299 {
		return fmt.Errorf("gateway returned %d: %s", response.StatusCode, raw)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("unmarshalling gateway response: %w", err)
	}
	return nil
}

// ChunkMessages splits messages into gateway-sized batches, preserving order.
func ChunkMessages(messages []PushMessage) [][]PushMessage {
	chunks := make([][]PushMessage, 0, (len(messages)+MessageChunkLimit-1)/MessageChunkLimit)
	for len(messages) > 0 {
		size := len(messages)
		if size > MessageChunkLimit {
			size = MessageChunkLimit
		}
		chunks = append(chunks, messages[:size])
		messages = messages[size:]
	}
	return chunks
}

// ChunkReceiptIDs splits ticket ids into gateway-sized batches, preserving order.
func ChunkReceiptIDs(ids []string) [][]string {
	chunks := make([][]string, 0, (len(ids)+ReceiptIDChunkLimit-1)/ReceiptIDChunkLimit)
	for len(ids) > 0 {
		size := len(ids)
		if size > ReceiptIDChunkLimit {
			size = ReceiptIDChunkLimit
		}
		chunks = append(chunks, ids[:size])
		ids = ids[size:]
	}
	return chunks
}
