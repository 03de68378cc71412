// Package tracker defines the capability the bot needs from an issue
// tracker: open an authenticated session, then fetch issues through it.
package tracker

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/jirabot/internal/model"
)

// ErrNotFound is returned by Session.FetchIssue when the tracker has no
// issue with the requested key.
var ErrNotFound = errors.New("issue not found")

// AuthError indicates that the tracker rejected the supplied credentials.
// It is returned by connectors when a 401 or 403 response is received.
type AuthError struct {
	URL     string
	Method  string
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s via %s): %s", e.URL, e.Method, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// Credentials is implemented by the credential sets a Connector accepts.
type Credentials interface {
	// Method names the authentication scheme for logs (e.g., "basic auth").
	Method() string
}

// BasicCredentials is a plain username/password pair.
type BasicCredentials struct {
	Username string
	Password string
}

// Method returns "basic auth".
func (BasicCredentials) Method() string { return "basic auth" }

// OAuthCredentials is a signed-request credential set. KeyCert holds the
// PEM encoded RSA private key registered with the tracker's application link.
type OAuthCredentials struct {
	AccessToken       string
	AccessTokenSecret string
	ConsumerKey       string
	KeyCert           []byte
}

// Method returns "oauth".
func (OAuthCredentials) Method() string { return "oauth" }

// Session is an authenticated handle to the remote tracker.
type Session interface {
	// FetchIssue retrieves a single issue by key. It returns an error
	// wrapping ErrNotFound when the issue does not exist.
	FetchIssue(ctx context.Context, key string) (*model.Issue, error)
}

// Connector establishes sessions with a tracker.
type Connector interface {
	// Connect authenticates against the tracker at url. Rejected
	// credentials produce an *AuthError.
	Connect(ctx context.Context, url string, creds Credentials) (Session, error)
}
