// Package pbclient is a thin client for the realtime data store that owns
// the users, groups, messages and pushTokens collections.
package pbclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/emberchat/push-relay/internal/model"
)

const listPageSize = 200

type Client struct {
	endpoint   string
	api        *http.Client
	stream     *http.Client
	retryDelay time.Duration

	mu            sync.Mutex
	token         string
	adminEmail    string
	adminPassword string
}

func New(endpoint string) *Client {
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		api:      &http.Client{Timeout: 30 * time.Second},
		// the realtime stream stays open indefinitely
		stream:     &http.Client{},
		retryDelay: 5 * time.Second,
	}
}

// AuthWithPassword opens the relay's own admin session with the store. The
// credentials are kept so the session can be renewed when its token nears
// expiry.
func (c *Client) AuthWithPassword(ctx context.Context, email string, password string) error {
	c.mu.Lock()
	c.adminEmail = email
	c.adminPassword = password
	c.mu.Unlock()

	return c.authenticate(ctx)
}

func (c *Client) authenticate(ctx context.Context) error {
	c.mu.Lock()
	credentials := struct {
		Identity string `json:"identity"`
		Password string `json:"password"`
	}{c.adminEmail, c.adminPassword}
	c.mu.Unlock()

	payload, err := json.Marshal(credentials)
	if err != nil {
		return fmt.Errorf("marshalling credentials: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/admins/auth-with-password", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating auth request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := c.api.Do(request)
	if err != nil {
		return fmt.Errorf("authenticating with store: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(response.Body)
		return fmt.Errorf("store rejected credentials: %d: %s", response.StatusCode, raw)
	}

	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(response.Body).Decode(&body); err != nil {
		return fmt.Errorf("decoding auth response: %w", err)
	}

	c.mu.Lock()
	c.token = body.Token
	c.mu.Unlock()

	return nil
}

// sessionToken returns the current session token, renewing the session
// first when the token is within its refresh window.
func (c *Client) sessionToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()

	if token == "" {
		return "", fmt.Errorf("no store session: authenticate first")
	}

	if expiry, ok := tokenExpiry(token); ok && time.Until(expiry) < 5*time.Minute {
		if err := c.authenticate(ctx); err != nil {
			return "", fmt.Errorf("renewing store session: %w", err)
		}
		c.mu.Lock()
		token = c.token
		c.mu.Unlock()
	}

	return token, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	token, err := c.sessionToken(ctx)
	if err != nil {
		return err
	}

	endpoint := c.endpoint + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	request.Header.Set("Authorization", token)

	response, err := c.api.Do(request)
	if err != nil {
		return fmt.Errorf("calling store: %w", err)
	}
	defer response.Body.Close()

	raw, err := io.ReadAll(response.Body)
	if err != nil {
		return fmt.Errorf("reading store response: %w", err)
	}
	if response.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", model.ErrorRecordNotFound, raw)
	}
	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("store returned %d: %s", response.StatusCode, raw)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("unmarshalling store response: %w", err)
	}
	return nil
}

// fullList pages through a filtered collection listing, handing each page's
// raw items to collect.
func (c *Client) fullList(ctx context.Context, collection string, filter string, collect func(items json.RawMessage) error) error {
	page := 1
	for {
		query := url.Values{}
		query.Set("page", fmt.Sprint(page))
		query.Set("perPage", fmt.Sprint(listPageSize))
		if filter != "" {
			query.Set("filter", filter)
		}

		var body struct {
			Page       int             `json:"page"`
			TotalPages int             `json:"totalPages"`
			Items      json.RawMessage `json:"items"`
		}
		if err := c.get(ctx, "/api/collections/"+collection+"/records", query, &body); err != nil {
			return fmt.Errorf("listing %s: %w", collection, err)
		}
		if err := collect(body.Items); err != nil {
			return err
		}
		if page >= body.TotalPages {
			return nil
		}
		page++
	}
}
