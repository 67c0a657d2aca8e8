// Package auth provides bearer token credentials for the REST and websocket
// endpoints.
package auth

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNoToken is returned when no usable token is available.
var ErrNoToken = errors.New("no auth token")

// Credentials supplies the bearer token. A token file, when set, is re-read
// on every call so a rotated token is picked up by the next request or
// reconnect without restarting the session.
type Credentials struct {
	token string // Static token
	path  string // Token file
}

// LoadCredentials builds credentials from a static token and/or a token
// file path. The file wins when both are set. The file is read once here
// so a bad path fails at startup.
func LoadCredentials(token, tokenPath string) (*Credentials, error) {
	if token == "" && tokenPath == "" {
		return nil, fmt.Errorf("token or token path is required")
	}

	c := &Credentials{token: token, path: tokenPath}
	if _, err := c.Token(); err != nil {
		return nil, err
	}
	return c, nil
}

// StaticToken returns credentials for a fixed token.
func StaticToken(token string) *Credentials {
	return &Credentials{token: token}
}

// Token returns the current token.
func (c *Credentials) Token() (string, error) {
	if c.path != "" {
		data, err := os.ReadFile(c.path)
		if err != nil {
			return "", fmt.Errorf("read token file: %w", err)
		}
		tok := strings.TrimSpace(string(data))
		if tok == "" {
			return "", fmt.Errorf("token file %s: %w", c.path, ErrNoToken)
		}
		return tok, nil
	}

	if c.token == "" {
		return "", ErrNoToken
	}
	return c.token, nil
}

// AuthorizationHeader returns the value for the Authorization header.
func (c *Credentials) AuthorizationHeader() (string, error) {
	tok, err := c.Token()
	if err != nil {
		return "", err
	}
	return "Bearer " + tok, nil
}
