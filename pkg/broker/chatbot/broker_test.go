package chatbot

import (
	"net/http"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/smarter-sh/smarter/pkg/broker"
	"github.com/smarter-sh/smarter/pkg/manifest"
	"github.com/smarter-sh/smarter/pkg/security"
	"github.com/smarter-sh/smarter/pkg/storage"
	"github.com/smarter-sh/smarter/pkg/types"
)

const applyManifest = `apiVersion: smarter.sh/v1
kind: Chatbot
metadata:
  name: support
  description: Customer support bot.
  version: 1.0.0
spec:
  config:
    appName: Support Bot
    appAssistant: Sally
    subdomain: support
  plugins:
    - company-info
`

// fakeCompletions echoes the last user message back, recording the
// conversation it was handed.
type fakeCompletions struct {
	messages []types.ChatMessage
}

func (f *fakeCompletions) Complete(model string, temperature float64, maxTokens int, messages []types.ChatMessage) (string, error) {
	f.messages = messages
	return "echo: " + messages[len(messages)-1].Content, nil
}

func newTestConfig(t *testing.T) (broker.Config, broker.Context, *fakeCompletions) {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "smarter-chatbot-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	store, err := storage.NewBoltStore(tmpDir)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	secrets, err := security.NewManagerFromPassphrase("test-passphrase")
	require.NoError(t, err)

	account := &types.Account{ID: "acct-1", AccountNumber: "0000-0000-0001"}
	require.NoError(t, store.CreateAccount(account))
	user := &types.User{ID: "user-1", AccountID: "acct-1", Username: "admin", IsAdmin: true}
	require.NoError(t, store.CreateUser(user))

	// A static plugin the chatbot references.
	require.NoError(t, store.CreatePlugin(&types.Plugin{
		ID:          "plugin-1",
		AccountID:   "acct-1",
		Name:        "company-info",
		Class:       types.PluginClassStatic,
		SystemRole:  "You know the company.",
		SearchTerms: []string{"company"},
		StaticData:  map[string]string{"founded": "2023"},
	}))

	completions := &fakeCompletions{}
	cfg := broker.Config{Store: store, Secrets: secrets, Completions: completions}
	ctx := broker.Context{Account: account, User: user}
	return cfg, ctx, completions
}

func apply(t *testing.T, cfg broker.Config, ctx broker.Context, text string) {
	t.Helper()
	b, err := New(cfg, ctx, broker.Options{Manifest: []byte(text)})
	require.NoError(t, err)
	_, err = b.Apply()
	require.NoError(t, err)
}

func TestApplyDefaultsAndPluginValidation(t *testing.T) {
	cfg, ctx, _ := newTestConfig(t)
	apply(t, cfg, ctx, applyManifest)

	record, err := cfg.Store.GetChatbotByName("acct-1", "support")
	require.NoError(t, err)
	require.Equal(t, defaultModel, record.DefaultModel)
	require.Equal(t, defaultTemperature, record.DefaultTemperature)
	require.Equal(t, defaultMaxTokens, record.DefaultMaxTokens)
	require.Equal(t, types.DeploymentStatusUndeployed, record.DeploymentStatus)
}

func TestApplyUnknownPluginFails(t *testing.T) {
	cfg, ctx, _ := newTestConfig(t)

	bad := strings.Replace(applyManifest, "company-info", "no-such-plugin", 1)
	b, err := New(cfg, ctx, broker.Options{Manifest: []byte(bad)})
	require.NoError(t, err)

	_, err = b.Apply()
	var ve *manifest.ValidationError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, "spec.plugins.0", ve.Fields[0].Path)
}

func TestDeployUndeployLifecycle(t *testing.T) {
	cfg, ctx, _ := newTestConfig(t)
	apply(t, cfg, ctx, applyManifest)

	b, err := New(cfg, ctx, broker.Options{Name: "support"})
	require.NoError(t, err)

	d, ok := b.(broker.Deployable)
	require.True(t, ok, "Chatbot must carry the deploy capability")

	resp, err := d.Deploy()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())

	record, err := cfg.Store.GetChatbotByName("acct-1", "support")
	require.NoError(t, err)
	require.Equal(t, types.DeploymentStatusDeployed, record.DeploymentStatus)
	require.Equal(t, "https://support.0000-0000-0001.api.smarter.sh", record.URL)
	require.False(t, record.DeployedAt.IsZero())

	_, err = d.Undeploy()
	require.NoError(t, err)

	record, err = cfg.Store.GetChatbotByName("acct-1", "support")
	require.NoError(t, err)
	require.Equal(t, types.DeploymentStatusUndeployed, record.DeploymentStatus)
	require.Empty(t, record.URL)
}

func TestDeployNeverCreatedNotReady(t *testing.T) {
	cfg, ctx, _ := newTestConfig(t)

	b, err := New(cfg, ctx, broker.Options{Name: "ghost"})
	require.NoError(t, err)

	_, err = b.(broker.Deployable).Deploy()
	var notReady *broker.NotReadyError
	require.ErrorAs(t, err, &notReady)
}

func TestChatRoutesMatchingPluginContext(t *testing.T) {
	cfg, ctx, completions := newTestConfig(t)
	apply(t, cfg, ctx, applyManifest)

	b, err := New(cfg, ctx, broker.Options{Name: "support"})
	require.NoError(t, err)

	c, ok := b.(broker.Chattable)
	require.True(t, ok, "Chatbot must carry the chat capability")

	resp, err := c.Chat("When was the company founded?")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())

	data := resp.Data.(map[string]any)
	require.Equal(t, "echo: When was the company founded?", data["response"])

	// Persona system message, plugin contribution, then the user turn.
	require.Len(t, completions.messages, 3)
	require.Equal(t, "system", completions.messages[1].Role)
	require.Contains(t, completions.messages[1].Content, "founded: 2023")
}

func TestChatWithoutMatchSkipsPlugins(t *testing.T) {
	cfg, ctx, completions := newTestConfig(t)
	apply(t, cfg, ctx, applyManifest)

	b, err := New(cfg, ctx, broker.Options{Name: "support"})
	require.NoError(t, err)

	_, err = b.(broker.Chattable).Chat("What is the weather?")
	require.NoError(t, err)
	require.Len(t, completions.messages, 2, "no plugin matched, so only persona and user turns")
}

func TestChatRequiresPrompt(t *testing.T) {
	cfg, ctx, _ := newTestConfig(t)
	apply(t, cfg, ctx, applyManifest)

	b, err := New(cfg, ctx, broker.Options{Name: "support"})
	require.NoError(t, err)

	_, err = b.(broker.Chattable).Chat("   ")
	var ve *manifest.ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestChatWithoutProvider(t *testing.T) {
	cfg, ctx, _ := newTestConfig(t)
	apply(t, cfg, ctx, applyManifest)
	cfg.Completions = nil

	b, err := New(cfg, ctx, broker.Options{Name: "support"})
	require.NoError(t, err)

	_, err = b.(broker.Chattable).Chat("hello")
	var brokerErr *broker.Error
	require.ErrorAs(t, err, &brokerErr)
}

func TestLogsCapability(t *testing.T) {
	cfg, ctx, _ := newTestConfig(t)
	apply(t, cfg, ctx, applyManifest)

	b, err := New(cfg, ctx, broker.Options{Name: "support"})
	require.NoError(t, err)

	l, ok := b.(broker.LogEmitting)
	require.True(t, ok, "Chatbot must carry the logs capability")

	resp, err := l.Logs()
	require.NoError(t, err)
	data := resp.Data.(*broker.ListData)
	require.GreaterOrEqual(t, data.Count, 1)
}
