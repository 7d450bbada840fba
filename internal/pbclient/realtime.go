package pbclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/gommon/log"
)

// RecordEvent is one record-change event from the store's realtime stream.
type RecordEvent struct {
	Action string          `json:"action"`
	Record json.RawMessage `json:"record"`
}

const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// EventHandler receives one event at a time. Handlers are expected to do
// their own error logging; a panicking handler is recovered so the stream
// stays alive.
type EventHandler func(ctx context.Context, event RecordEvent)

// Subscribe streams record-change events for a collection until ctx is
// cancelled, reconnecting with a fixed delay whenever the stream drops.
func (c *Client) Subscribe(ctx context.Context, collection string, handler EventHandler) error {
	for {
		err := c.streamEvents(ctx, collection, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Errorf("realtime stream for %s dropped: %+v", collection, err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.retryDelay):
		}
	}
}

func (c *Client) streamEvents(ctx context.Context, collection string, handler EventHandler) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/api/realtime", nil)
	if err != nil {
		return fmt.Errorf("creating realtime request: %w", err)
	}
	request.Header.Set("Accept", "text/event-stream")

	response, err := c.stream.Do(request)
	if err != nil {
		return fmt.Errorf("connecting to realtime stream: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("realtime stream returned %d", response.StatusCode)
	}

	scanner := bufio.NewScanner(response.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var eventName string
	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if err := c.handleFrame(ctx, collection, eventName, data.String(), handler); err != nil {
				return err
			}
			eventName = ""
			data.Reset()
		case strings.HasPrefix(line, "event:"):
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			// successive data lines of one frame join with a newline
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
		// id: and comment lines are ignored
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading realtime stream: %w", err)
	}
	return io.EOF
}

func (c *Client) handleFrame(ctx context.Context, collection string, eventName string, data string, handler EventHandler) error {
	switch {
	case eventName == "PB_CONNECT":
		var connect struct {
			ClientID string `json:"clientId"`
		}
		if err := json.Unmarshal([]byte(data), &connect); err != nil {
			return fmt.Errorf("unmarshalling connect frame: %w", err)
		}
		return c.setSubscriptions(ctx, connect.ClientID, []string{collection + "/*"})

	case strings.HasPrefix(eventName, collection+"/"):
		var event RecordEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			log.Errorf("unmarshalling %s event: %+v", collection, err)
			return nil
		}
		deliverEvent(ctx, handler, event)
	}
	return nil
}

func deliverEvent(ctx context.Context, handler EventHandler, event RecordEvent) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("recovered event handler panic: %v", r)
		}
	}()
	handler(ctx, event)
}

// setSubscriptions registers the topics this connection listens on.
func (c *Client) setSubscriptions(ctx context.Context, clientID string, topics []string) error {
	token, err := c.sessionToken(ctx)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(struct {
		ClientID      string   `json:"clientId"`
		Subscriptions []string `json:"subscriptions"`
	}{clientID, topics})
	if err != nil {
		return fmt.Errorf("marshalling subscriptions: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/realtime", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating subscription request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Authorization", token)

	response, err := c.api.Do(request)
	if err != nil {
		return fmt.Errorf("registering subscriptions: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return fmt.Errorf("subscription registration returned %d", response.StatusCode)
	}
	return nil
}
