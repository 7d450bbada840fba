package pbclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt"

	"github.com/emberchat/push-relay/internal/model"
)

// VerifyAdmin checks that the caller's token resolves to the admin identity
// behind adminID. The token is forwarded as-is; any transport failure or
// non-OK status counts as an authorization failure.
func (c *Client) VerifyAdmin(ctx context.Context, adminID string, token string) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/api/admins/"+adminID, nil)
	if err != nil {
		return fmt.Errorf("creating admin check request: %w", err)
	}
	request.Header.Set("Authorization", token)

	response, err := c.api.Do(request)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrorInvalidAuthorization, err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: store returned %d", model.ErrorInvalidAuthorization, response.StatusCode)
	}
	return nil
}

// tokenExpiry reads the exp claim from a session token without verifying
// its signature. Unparseable tokens report no expiry.
func tokenExpiry(token string) (time.Time, bool) {
	parser := jwt.Parser{}
	parsed, _, err := parser.ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return time.Time{}, false
	}
	exp, ok := claims["exp"].(float64)
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(int64(exp), 0), true
}
