package jira

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/jirabot/internal/chat"
	"github.com/nhle/jirabot/internal/model"
	"github.com/nhle/jirabot/tests/testutil"
)

func testLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

// newActiveHost registers a plugin logged into fake with basic auth and
// returns the host and its transport.
func newActiveHost(t *testing.T, fake *testutil.FakeJira) (*chat.Host, *testutil.RecordingTransport) {
	t.Helper()
	logger, _ := testLogger()
	tr := &testutil.RecordingTransport{}
	h := chat.NewHost(tr, chat.HostConfig{Logger: logger})

	p := New(WithLogger(logger))
	require.NoError(t, h.Register(context.Background(), p, chat.Config{
		"api_url":  fake.URL,
		"username": fake.Username,
		"password": fake.Password,
	}))
	return h, tr
}

func TestConfigure_MergesOverTemplate(t *testing.T) {
	p := New()

	cfg := p.Configure(chat.Config{"api_url": "https://jira.corp.example", "PASSWORD": "s3cret"})
	assert.Equal(t, "https://jira.corp.example", cfg[KeyAPIURL])
	assert.Equal(t, "s3cret", cfg[KeyPassword])
	assert.Equal(t, "jirabot", cfg[KeyUsername], "omitted keys keep their template default")
	assert.Equal(t, "", cfg[KeyOAuthAccessToken])
	assert.Len(t, cfg, len(Template()))
}

func TestConfigure_Nil(t *testing.T) {
	p := New()
	assert.Nil(t, p.Configure(nil))
}

func TestConfigure_EmptyUsesTemplate(t *testing.T) {
	p := New()
	assert.Equal(t, Template(), p.Configure(chat.Config{}))
}

func TestCheckConfiguration(t *testing.T) {
	withOAuth := func(token, secret, consumer, file string) chat.Config {
		cfg := Template()
		cfg[KeyOAuthAccessToken] = token
		cfg[KeyOAuthAccessTokenSecret] = secret
		cfg[KeyOAuthConsumerKey] = consumer
		cfg[KeyOAuthKeyCertFile] = file
		return cfg
	}
	withURL := func(u string) chat.Config {
		cfg := Template()
		cfg[KeyAPIURL] = u
		return cfg
	}
	withExtra := Template()
	withExtra["API_TOKEN"] = "x"

	tests := []struct {
		name    string
		cfg     chat.Config
		wantErr string
	}{
		{name: "template", cfg: Template()},
		{name: "full oauth", cfg: withOAuth("tok", "sec", "ck", "/etc/jira.pem")},
		{name: "keyring url", cfg: withURL("keyring:jira-url")},
		{name: "relative url", cfg: withURL("jira.example.com"), wantErr: "API_URL must be an absolute URL"},
		{name: "empty url", cfg: withURL(""), wantErr: "API_URL must be an absolute URL"},
		{name: "partial oauth", cfg: withOAuth("tok", "", "ck", ""), wantErr: "missing OAUTH_ACCESS_TOKEN_SECRET, OAUTH_KEY_CERT_FILE"},
		{name: "unknown key", cfg: withExtra, wantErr: "unknown keys API_TOKEN"},
	}

	p := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.CheckConfiguration(tt.cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfiguration)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestActivate_NotConfigured(t *testing.T) {
	fake := testutil.NewFakeJira(t)
	logger, logs := testLogger()
	bot := &testutil.RecordingBot{}

	p := New(WithLogger(logger))
	p.Configure(nil)

	err := p.Activate(context.Background(), bot)
	assert.ErrorIs(t, err, chat.ErrNotConfigured)
	assert.Equal(t, []string{"Jira not configured."}, bot.Warnings)
	assert.Contains(t, logs.String(), "Jira not configured.")
	assert.Zero(t, fake.Requests())
	assert.Empty(t, p.Method())
}

func TestActivate_BasicAuth(t *testing.T) {
	fake := testutil.NewFakeJira(t)
	logger, logs := testLogger()
	bot := &testutil.RecordingBot{}

	p := New(WithLogger(logger))
	p.Configure(chat.Config{KeyAPIURL: fake.URL, KeyUsername: fake.Username, KeyPassword: fake.Password})

	require.NoError(t, p.Activate(context.Background(), bot))
	assert.Equal(t, "basic auth", p.Method())
	assert.Empty(t, bot.Warnings)
	assert.Equal(t, []string{"basic"}, fake.AuthMethods())
	assert.Contains(t, logs.String(), "oauth configuration not set")
	assert.Contains(t, logs.String(), "logging into "+fake.URL+" via basic auth")
}

func TestActivate_OAuth(t *testing.T) {
	fake := testutil.NewFakeJira(t)
	fake.OAuthToken = "access-token"
	logger, _ := testLogger()

	p := New(WithLogger(logger))
	p.Configure(chat.Config{
		KeyAPIURL:                 fake.URL,
		KeyOAuthAccessToken:       "access-token",
		KeyOAuthAccessTokenSecret: "access-secret",
		KeyOAuthConsumerKey:       "jirabot",
		KeyOAuthKeyCertFile:       testutil.WriteRSAKey(t),
	})

	require.NoError(t, p.Activate(context.Background(), &testutil.RecordingBot{}))
	assert.Equal(t, "oauth", p.Method())
	assert.Equal(t, []string{"oauth"}, fake.AuthMethods())
}

func TestActivate_KeyringPassword(t *testing.T) {
	fake := testutil.NewFakeJira(t)
	logger, _ := testLogger()

	p := New(WithLogger(logger), WithSecretLookup(func(key string) (string, error) {
		if key == "jira-password" {
			return fake.Password, nil
		}
		return "", errors.New("not found")
	}))
	p.Configure(chat.Config{KeyAPIURL: fake.URL, KeyUsername: fake.Username, KeyPassword: "keyring:jira-password"})

	require.NoError(t, p.Activate(context.Background(), &testutil.RecordingBot{}))
	assert.Equal(t, "basic auth", p.Method())
}

func TestActivate_KeyringMissing(t *testing.T) {
	fake := testutil.NewFakeJira(t)
	logger, _ := testLogger()
	bot := &testutil.RecordingBot{}

	p := New(WithLogger(logger), WithSecretLookup(func(string) (string, error) {
		return "", errors.New("item not found")
	}))
	p.Configure(chat.Config{KeyAPIURL: fake.URL, KeyPassword: "keyring:jira-password"})

	err := p.Activate(context.Background(), bot)
	assert.EqualError(t, err, "resolving PASSWORD: item not found")
	assert.Equal(t, []string{msgLoginFailed}, bot.Warnings)
	assert.Zero(t, fake.Requests())
}

func TestActivate_KeyringAPIURL(t *testing.T) {
	fake := testutil.NewFakeJira(t)
	logger, _ := testLogger()

	p := New(WithLogger(logger), WithSecretLookup(func(key string) (string, error) {
		if key == "jira-url" {
			return fake.URL, nil
		}
		return "", errors.New("not found")
	}))
	cfg := p.Configure(chat.Config{KeyAPIURL: "keyring:jira-url", KeyUsername: fake.Username, KeyPassword: fake.Password})
	require.NoError(t, p.CheckConfiguration(cfg))

	require.NoError(t, p.Activate(context.Background(), &testutil.RecordingBot{}))
	assert.Equal(t, "basic auth", p.Method())
}

func TestRegister_RejectedBasicAuthLeavesPluginInactive(t *testing.T) {
	fake := testutil.NewFakeJira(t)
	logger, logs := testLogger()
	tr := &testutil.RecordingTransport{}
	h := chat.NewHost(tr, chat.HostConfig{Admins: []string{"UADMIN"}, Logger: logger})

	p := New(WithLogger(logger))
	err := h.Register(context.Background(), p, chat.Config{
		"API_URL":  fake.URL,
		"USERNAME": fake.Username,
		"PASSWORD": "wrong",
	})
	require.Error(t, err)
	assert.False(t, h.Active(Name))
	assert.Empty(t, p.Method())

	_, ok := h.Lookup("jira")
	assert.False(t, ok, "commands must not be registered without a session")

	assert.Equal(t, []testutil.DirectMessage{{User: "UADMIN", Text: msgLoginFailed}}, tr.Direct)
	assert.Contains(t, logs.String(), "unable to login to "+fake.URL+" via basic auth")
	assert.Contains(t, logs.String(), msgLoginFailed)

	h.Handle(context.Background(), &chat.Message{Body: "!jira PROJ-1"})
	assert.Equal(t, []string{`Command "jira" not found.`}, tr.Texts())
}

func TestLookup_RoundTrip(t *testing.T) {
	fake := testutil.NewFakeJira(t)
	fake.AddIssue("PROJ-123", testutil.FakeIssue{
		Summary:  "Login page returns 500",
		Status:   "In Progress",
		Assignee: "Ada Lovelace",
		Reporter: "Grace Hopper",
	})
	h, tr := newActiveHost(t, fake)

	msg := &chat.Message{From: "U1", Channel: "C1", Body: "!jira please check proj-123 today"}
	h.Handle(context.Background(), msg)

	require.Len(t, tr.Replies, 1)
	assert.Same(t, msg, tr.Replies[0].To)
	assert.Equal(t,
		"(In Progress) \"Login page returns 500\" (by Grace Hopper)\n"+
			"assigned to Ada Lovelace - "+fake.URL+"/browse/PROJ-123",
		tr.Replies[0].Text)
}

func TestLookup_CompactIdentifier(t *testing.T) {
	fake := testutil.NewFakeJira(t)
	fake.AddIssue("ISSUE-1234", testutil.FakeIssue{Summary: "Broken", Status: "Open"})
	h, tr := newActiveHost(t, fake)

	h.Handle(context.Background(), &chat.Message{Body: "!jira issue1234 broken"})

	assert.Equal(t, []string{
		"(Open) \"Broken\" (by Anonymous)\nassigned to Unassigned - " + fake.URL + "/browse/ISSUE-1234",
	}, tr.Texts())
}

func TestLookup_NotFound(t *testing.T) {
	fake := testutil.NewFakeJira(t)
	h, tr := newActiveHost(t, fake)

	h.Handle(context.Background(), &chat.Message{Body: "!jira abc-9"})
	assert.Equal(t, []string{"issue ABC-9 not found."}, tr.Texts())
}

func TestLookup_EmptyIdentifier(t *testing.T) {
	fake := testutil.NewFakeJira(t)
	h, tr := newActiveHost(t, fake)
	before := fake.Requests()

	h.Handle(context.Background(), &chat.Message{Body: "!jira"})
	assert.Equal(t, []string{"issue id cannot be empty"}, tr.Texts())
	assert.Equal(t, before, fake.Requests())
}

func TestLookup_MalformedIdentifier(t *testing.T) {
	fake := testutil.NewFakeJira(t)
	h, tr := newActiveHost(t, fake)
	before := fake.Requests()

	h.Handle(context.Background(), &chat.Message{Body: "!jira hello world"})
	assert.Equal(t, []string{"issue id format incorrect"}, tr.Texts())
	assert.Equal(t, before, fake.Requests())
}

func TestCreateAndAssignNotImplemented(t *testing.T) {
	fake := testutil.NewFakeJira(t)
	h, tr := newActiveHost(t, fake)

	h.Handle(context.Background(), &chat.Message{Body: "!jira create PROJ summary"})
	h.Handle(context.Background(), &chat.Message{Body: "!jira assign PROJ-1 ada"})
	assert.Equal(t, []string{"Not implemented", "Not implemented"}, tr.Texts())
}

type failingSession struct{ err error }

func (s failingSession) FetchIssue(context.Context, string) (*model.Issue, error) {
	return nil, s.err
}

func TestLookup_TrackerErrorRendersNotFound(t *testing.T) {
	logger, logs := testLogger()
	bot := &testutil.RecordingBot{}
	p := New(WithLogger(logger))
	p.bot = bot
	p.session = failingSession{err: errors.New("502 Bad Gateway")}

	ctx := chat.WithLogger(context.Background(), logger)
	text, err := p.lookupIssue(ctx, &chat.Message{Body: "!jira PROJ-7"}, []string{"PROJ-7"})
	require.NoError(t, err)
	assert.Equal(t, "issue PROJ-7 not found.", text)
	assert.Contains(t, logs.String(), "level=ERROR")
	assert.Contains(t, logs.String(), "502 Bad Gateway")
}

func TestLookup_Inactive(t *testing.T) {
	p := New()
	_, err := p.lookupIssue(context.Background(), &chat.Message{Body: "!jira PROJ-1"}, []string{"PROJ-1"})
	assert.Error(t, err)
}

func TestFormatIssue(t *testing.T) {
	got := formatIssue(&model.Issue{
		Key:       "PROJ-1",
		Summary:   "Fix \"quoted\" title",
		Status:    "Done",
		Assignee:  "Ada",
		Reporter:  "Grace",
		Permalink: "https://jira.example.com/browse/PROJ-1",
	})
	assert.Equal(t, "(Done) \"Fix \"quoted\" title\" (by Grace)\nassigned to Ada - https://jira.example.com/browse/PROJ-1", got)
	assert.Equal(t, "issue PROJ-1 not found.", formatNotFound("PROJ-1"))
}
