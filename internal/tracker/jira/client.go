package jira

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	gojira "github.com/andygrunwald/go-jira"
	"github.com/dghubble/oauth1"
	"github.com/golang-jwt/jwt/v5"

	"github.com/nhle/jirabot/internal/tracker"
)

// OAuth 1.0a endpoints exposed by Jira Server/DC application links.
const (
	requestTokenPath = "/plugins/servlet/oauth/request-token"
	authorizePath    = "/plugins/servlet/oauth/authorize"
	accessTokenPath  = "/plugins/servlet/oauth/access-token"
)

// Connector implements tracker.Connector for Jira Server/DC using the
// go-jira REST client. A session is only handed out after the tracker has
// accepted the credentials on GET /rest/api/2/myself.
type Connector struct {
	// base is the HTTP client used underneath the auth transports. It is
	// nil in production, which selects http.DefaultClient.
	base *http.Client
}

// NewConnector creates a Jira connector. A nil httpClient selects
// http.DefaultClient.
func NewConnector(httpClient *http.Client) *Connector {
	return &Connector{base: httpClient}
}

// Connect authenticates against the Jira instance at baseURL.
func (c *Connector) Connect(
	ctx context.Context,
	baseURL string,
	creds tracker.Credentials,
) (tracker.Session, error) {
	baseURL = strings.TrimRight(baseURL, "/")

	httpClient, err := c.authenticatedClient(ctx, baseURL, creds)
	if err != nil {
		return nil, err
	}

	client, err := gojira.NewClient(httpClient, baseURL)
	if err != nil {
		return nil, fmt.Errorf("creating Jira client for %s: %w", baseURL, err)
	}

	if _, resp, err := client.User.GetSelfWithContext(ctx); err != nil {
		return nil, connectError(baseURL, creds.Method(), resp, err)
	}

	return newSession(client, baseURL), nil
}

// authenticatedClient returns an *http.Client whose transport signs every
// request with the given credentials.
func (c *Connector) authenticatedClient(
	ctx context.Context,
	baseURL string,
	creds tracker.Credentials,
) (*http.Client, error) {
	switch cr := creds.(type) {
	case tracker.BasicCredentials:
		tp := gojira.BasicAuthTransport{
			Username: cr.Username,
			Password: cr.Password,
		}
		if c.base != nil {
			tp.Transport = c.base.Transport
		}
		return tp.Client(), nil

	case tracker.OAuthCredentials:
		key, err := jwt.ParseRSAPrivateKeyFromPEM(cr.KeyCert)
		if err != nil {
			return nil, fmt.Errorf("parsing oauth key cert: %w", err)
		}
		cfg := oauth1.Config{
			ConsumerKey: cr.ConsumerKey,
			CallbackURL: "oob",
			Endpoint: oauth1.Endpoint{
				RequestTokenURL: baseURL + requestTokenPath,
				AuthorizeURL:    baseURL + authorizePath,
				AccessTokenURL:  baseURL + accessTokenPath,
			},
			Signer: &oauth1.RSASigner{PrivateKey: key},
		}
		if c.base != nil {
			ctx = context.WithValue(ctx, oauth1.HTTPClient, c.base)
		}
		token := oauth1.NewToken(cr.AccessToken, cr.AccessTokenSecret)
		return cfg.Client(ctx, token), nil

	default:
		return nil, fmt.Errorf("unsupported credentials %T", creds)
	}
}

// connectError maps a failed login check to a tracker error. 401 and 403
// mean the credentials were rejected; anything else is a transport or
// server problem.
func connectError(
	baseURL string,
	method string,
	resp *gojira.Response,
	err error,
) error {
	if resp != nil &&
		(resp.StatusCode == http.StatusUnauthorized ||
			resp.StatusCode == http.StatusForbidden) {
		return &tracker.AuthError{
			URL:     baseURL,
			Method:  method,
			Message: resp.Status,
		}
	}
	return fmt.Errorf("connecting to %s via %s: %w", baseURL, method, err)
}
