// Package auth opens a tracker session by trying an ordered list of login
// strategies until one succeeds.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nhle/jirabot/internal/metrics"
	"github.com/nhle/jirabot/internal/tracker"
)

var (
	// ErrNotConfigured is returned by a strategy that has no credentials.
	ErrNotConfigured = errors.New("not configured")

	// ErrCertificateRead is returned when the OAuth key file is unreadable.
	ErrCertificateRead = errors.New("unable to read key file")

	// ErrNoSession is returned when every strategy failed or was skipped.
	ErrNoSession = errors.New("no session established")
)

// Authenticator tries its strategies in order against one tracker URL.
type Authenticator struct {
	connector  tracker.Connector
	url        string
	strategies []Strategy
	logger     *slog.Logger
}

// New creates an Authenticator. A nil logger selects slog.Default().
func New(
	connector tracker.Connector,
	url string,
	logger *slog.Logger,
	strategies ...Strategy,
) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{
		connector:  connector,
		url:        url,
		strategies: strategies,
		logger:     logger,
	}
}

// Authenticate returns the session of the first strategy that logs in,
// along with that strategy's name. Failures are logged, never retried.
// When no strategy succeeds the session is nil and the error wraps
// ErrNoSession together with every strategy's failure.
func (a *Authenticator) Authenticate(
	ctx context.Context,
) (tracker.Session, string, error) {
	var errs []error

	for _, s := range a.strategies {
		log := a.logger.With("strategy", s.Name(), "url", a.url)

		sess, err := s.Login(ctx, a.connector, a.url)
		switch {
		case err == nil && sess != nil:
			metrics.LoginAttemptsTotal.WithLabelValues(s.Name(), "success").Inc()
			log.Info(fmt.Sprintf("logging into %s via %s", a.url, s.Name()))
			return sess, s.Name(), nil

		case err == nil:
			err = fmt.Errorf("%s: connector returned no session", s.Name())
			metrics.LoginAttemptsTotal.WithLabelValues(s.Name(), "error").Inc()
			log.Error(fmt.Sprintf("unable to login to %s via %s", a.url, s.Name()), "error", err)

		case errors.Is(err, ErrNotConfigured):
			metrics.LoginAttemptsTotal.WithLabelValues(s.Name(), "skipped").Inc()
			log.Info(s.Name() + " configuration not set")

		case errors.Is(err, ErrCertificateRead):
			metrics.LoginAttemptsTotal.WithLabelValues(s.Name(), "error").Inc()
			log.Error(err.Error())

		case tracker.IsAuthError(err):
			metrics.LoginAttemptsTotal.WithLabelValues(s.Name(), "rejected").Inc()
			log.Error(fmt.Sprintf("unable to login to %s via %s", a.url, s.Name()), "error", err)

		default:
			metrics.LoginAttemptsTotal.WithLabelValues(s.Name(), "error").Inc()
			log.Error(fmt.Sprintf("unable to login to %s via %s", a.url, s.Name()), "error", err)
		}

		errs = append(errs, err)
	}

	if len(errs) == 0 {
		return nil, "", ErrNoSession
	}
	return nil, "", fmt.Errorf("%w: %w", ErrNoSession, errors.Join(errs...))
}
