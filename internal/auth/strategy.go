package auth

import (
	"context"
	"fmt"
	"os"

	"github.com/nhle/jirabot/internal/tracker"
)

// Strategy is one way of logging into the tracker.
type Strategy interface {
	// Name identifies the strategy in logs and metrics (e.g., "oauth").
	Name() string

	// Login opens a session at url through c. It returns an error wrapping
	// ErrNotConfigured when the strategy has no credentials to try.
	Login(ctx context.Context, c tracker.Connector, url string) (tracker.Session, error)
}

// OAuth logs in with an OAuth 1.0a access token signed by the RSA key
// stored in KeyCertFile.
type OAuth struct {
	AccessToken       string
	AccessTokenSecret string
	ConsumerKey       string
	KeyCertFile       string
}

// Name returns "oauth".
func (s *OAuth) Name() string { return "oauth" }

// Login reads the key file and connects. An empty AccessToken skips the
// strategy without touching the tracker or the file system.
func (s *OAuth) Login(
	ctx context.Context,
	c tracker.Connector,
	url string,
) (tracker.Session, error) {
	if s.AccessToken == "" {
		return nil, fmt.Errorf("oauth: %w", ErrNotConfigured)
	}

	keyCert, err := os.ReadFile(s.KeyCertFile)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrCertificateRead, s.KeyCertFile, err)
	}

	return c.Connect(ctx, url, tracker.OAuthCredentials{
		AccessToken:       s.AccessToken,
		AccessTokenSecret: s.AccessTokenSecret,
		ConsumerKey:       s.ConsumerKey,
		KeyCert:           keyCert,
	})
}

// Basic logs in with a username and password.
type Basic struct {
	Username string
	Password string
}

// Name returns "basic auth".
func (s *Basic) Name() string { return "basic auth" }

// Login connects with the username/password pair.
func (s *Basic) Login(
	ctx context.Context,
	c tracker.Connector,
	url string,
) (tracker.Session, error) {
	return c.Connect(ctx, url, tracker.BasicCredentials{
		Username: s.Username,
		Password: s.Password,
	})
}
