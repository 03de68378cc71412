package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// FakeIssue is the subset of a Jira issue served by FakeJira.
type FakeIssue struct {
	Summary  string
	Status   string
	Assignee string
	Reporter string
}

// FakeJira is an in-process Jira Server REST v2 stand-in. It accepts basic
// auth for Username/Password and OAuth for OAuthToken, serves /myself and
// /issue/{key}, and counts every request it receives.
type FakeJira struct {
	*httptest.Server

	Username   string
	Password   string
	OAuthToken string

	mu       sync.Mutex
	issues   map[string]FakeIssue
	requests int
	methods  []string
}

// NewFakeJira starts a FakeJira that is shut down when the test completes.
func NewFakeJira(t *testing.T) *FakeJira {
	t.Helper()

	f := &FakeJira{
		Username: "jirabot",
		Password: "password",
		issues:   make(map[string]FakeIssue),
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Close)

	return f
}

// AddIssue registers an issue under key.
func (f *FakeJira) AddIssue(key string, issue FakeIssue) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.issues[key] = issue
}

// Requests returns the number of requests served so far.
func (f *FakeJira) Requests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests
}

// AuthMethods returns the auth scheme ("basic", "oauth" or "none") seen on
// each request, in order.
func (f *FakeJira) AuthMethods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.methods...)
}

func (f *FakeJira) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests++
	method, ok := f.authenticate(r)
	f.methods = append(f.methods, method)
	f.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"errorMessages": []string{"You are not authenticated."},
			"errors":        map[string]string{},
		})
		return
	}

	switch {
	case r.URL.Path == "/rest/api/2/myself":
		writeJSON(w, http.StatusOK, map[string]any{
			"name":        f.Username,
			"displayName": "Jira Bot",
			"active":      true,
		})

	case strings.HasPrefix(r.URL.Path, "/rest/api/2/issue/"):
		key := strings.TrimPrefix(r.URL.Path, "/rest/api/2/issue/")
		f.mu.Lock()
		issue, found := f.issues[key]
		f.mu.Unlock()
		if !found {
			writeJSON(w, http.StatusNotFound, map[string]any{
				"errorMessages": []string{"Issue Does Not Exist"},
				"errors":        map[string]string{},
			})
			return
		}
		writeJSON(w, http.StatusOK, issueJSON(key, issue))

	default:
		http.NotFound(w, r)
	}
}

// authenticate must be called with f.mu held.
func (f *FakeJira) authenticate(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	switch {
	case strings.HasPrefix(header, "OAuth "):
		return "oauth", f.OAuthToken != "" &&
			strings.Contains(header, `oauth_token="`+f.OAuthToken+`"`) &&
			strings.Contains(header, `oauth_signature_method="RSA-SHA1"`)
	case header != "":
		user, pass, ok := r.BasicAuth()
		return "basic", ok && user == f.Username && pass == f.Password
	default:
		return "none", false
	}
}

func issueJSON(key string, issue FakeIssue) map[string]any {
	fields := map[string]any{
		"summary": issue.Summary,
		"status":  map[string]any{"name": issue.Status},
	}
	if issue.Assignee != "" {
		fields["assignee"] = map[string]any{"displayName": issue.Assignee}
	}
	if issue.Reporter != "" {
		fields["reporter"] = map[string]any{"displayName": issue.Reporter}
	}
	return map[string]any{
		"id":     "10001",
		"key":    key,
		"fields": fields,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteRSAKey generates an RSA private key, writes it PEM encoded to a file
// in a per-test temp dir and returns the path.
func WriteRSAKey(t *testing.T) string {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating RSA key: %v", err)
	}

	data := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})

	path := filepath.Join(t.TempDir(), "jira_privatekey.pem")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("writing RSA key: %v", err)
	}

	return path
}
