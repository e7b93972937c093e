package remote

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// TokenProvider supplies the bearer token for API calls. An empty token with
// a nil error means the user is not logged in.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// TokenFunc adapts a function to TokenProvider.
type TokenFunc func(ctx context.Context) (string, error)

func (f TokenFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

// StaticToken always returns itself.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) { return string(t), nil }

// EnvToken reads the token from an environment variable on every call, so a
// token loaded later from a .env file is still seen.
type EnvToken string

func (v EnvToken) Token(context.Context) (string, error) {
	return os.Getenv(string(v)), nil
}

// FileToken reads the token from a file. A missing file means no token.
type FileToken string

func (p FileToken) Token(context.Context) (string, error) {
	data, err := os.ReadFile(string(p))
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

const bearer = "Bearer "

// Authorization returns the Authorization header value for token. Tokens
// already carrying the scheme are passed through. Returns "" for an empty
// token.
func Authorization(token string) string {
	token = strings.TrimSpace(token)
	if token == "" {
		return ""
	}
	if len(token) >= len(bearer) && strings.EqualFold(token[:len(bearer)], bearer) {
		rest := strings.TrimSpace(token[len(bearer):])
		if rest == "" {
			return ""
		}
		return bearer + rest
	}
	return bearer + token
}
