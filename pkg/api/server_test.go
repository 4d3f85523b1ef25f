package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/smarter-sh/smarter/pkg/account"
	"github.com/smarter-sh/smarter/pkg/broker"
	"github.com/smarter-sh/smarter/pkg/broker/kinds"
	"github.com/smarter-sh/smarter/pkg/log"
	"github.com/smarter-sh/smarter/pkg/security"
	"github.com/smarter-sh/smarter/pkg/storage"
)

const connectionManifest = `apiVersion: smarter.sh/v1
kind: SqlConnection
metadata:
  name: my-db
  description: Sales database.
  version: 1.0.0
spec:
  dbEngine: django.db.backends.mysql
  hostname: db.example.com
  port: 3306
  database: sales
  username: app
  password: top-secret-password
`

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	log.Init(log.Config{Level: log.ErrorLevel, JSONOutput: true})

	tmpDir, err := os.MkdirTemp("", "smarter-api-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	store, err := storage.NewBoltStore(tmpDir)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	secrets, err := security.NewManagerFromPassphrase("test-passphrase")
	require.NoError(t, err)

	acct, err := account.Bootstrap(store, "Test Co")
	require.NoError(t, err)

	server := NewServer(Config{
		Addr:     "127.0.0.1:0",
		Registry: kinds.NewRegistry(),
		Brokers:  broker.Config{Store: store, Secrets: secrets},
		Resolver: account.NewResolver(store),
		Store:    store,
	})
	return server, acct.APIKey
}

func doRequest(t *testing.T, server *Server, apiKey, command, kind string, body CommandRequest) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost,
		"/api/v1/cli/"+command+"/"+kind, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Token "+apiKey)
	}

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestCommandRequiresAPIKey(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doRequest(t, server, "", "get", "SqlConnection", CommandRequest{AllObjects: true})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, server, "wrong-key", "get", "SqlConnection", CommandRequest{AllObjects: true})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestApplyAndGetRoundTrip(t *testing.T) {
	server, apiKey := newTestServer(t)

	rec := doRequest(t, server, apiKey, "apply", "SqlConnection",
		CommandRequest{Manifest: connectionManifest})
	require.Equal(t, http.StatusOK, rec.Code)

	var applied broker.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &applied))
	require.Equal(t, "SqlConnection", applied.Thing)
	require.Equal(t, "apply", applied.Metadata.Command)
	require.NotContains(t, rec.Body.String(), "top-secret-password")

	rec = doRequest(t, server, apiKey, "get", "SqlConnection", CommandRequest{Name: "my-db"})
	require.Equal(t, http.StatusOK, rec.Code)

	var got broker.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.NotNil(t, got.Metadata.Count)
	require.Equal(t, 1, *got.Metadata.Count)
	require.NotContains(t, rec.Body.String(), "top-secret-password")
}

func TestGetMissingReturns404Envelope(t *testing.T) {
	server, apiKey := newTestServer(t)

	rec := doRequest(t, server, apiKey, "get", "SqlConnection", CommandRequest{Name: "ghost"})
	require.Equal(t, http.StatusNotFound, rec.Code)

	var resp broker.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Metadata.Count)
	require.Equal(t, 0, *resp.Metadata.Count)
}

func TestApplyIgnoresServerLocalFilePaths(t *testing.T) {
	server, apiKey := newTestServer(t)

	// A manifest sitting on the server's own disk must be unreachable
	// through the request body; only inline text is accepted.
	path := filepath.Join(t.TempDir(), "manifest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(connectionManifest), 0600))

	payload := fmt.Sprintf(`{"filePath": %q}`, path)
	req := httptest.NewRequest(http.MethodPost,
		"/api/v1/cli/apply/SqlConnection", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+apiKey)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.GreaterOrEqual(t, rec.Code, 400)
	require.NotContains(t, rec.Body.String(), "db.example.com")

	rec = doRequest(t, server, apiKey, "get", "SqlConnection", CommandRequest{Name: "my-db"})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnknownKindReturns400(t *testing.T) {
	server, apiKey := newTestServer(t)

	rec := doRequest(t, server, apiKey, "get", "Gadget", CommandRequest{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "ValidationError")
}

func TestUnsupportedCommandReturns501(t *testing.T) {
	server, apiKey := newTestServer(t)

	rec := doRequest(t, server, apiKey, "apply", "SqlConnection",
		CommandRequest{Manifest: connectionManifest})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, server, apiKey, "deploy", "SqlConnection", CommandRequest{Name: "my-db"})
	require.Equal(t, http.StatusNotImplemented, rec.Code)
	require.Contains(t, rec.Body.String(), "BrokerErrorNotImplemented")
}

func TestValidationErrorEnvelope(t *testing.T) {
	server, apiKey := newTestServer(t)

	bad := bytes.ReplaceAll([]byte(connectionManifest),
		[]byte("django.db.backends.mysql"), []byte("not-an-engine"))
	rec := doRequest(t, server, apiKey, "apply", "SqlConnection",
		CommandRequest{Manifest: string(bad)})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "ValidationError")
	require.Contains(t, rec.Body.String(), "spec.dbEngine")
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "schema_version")
}

func TestMetricsEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestExampleManifestIsApplyable(t *testing.T) {
	server, apiKey := newTestServer(t)

	rec := doRequest(t, server, apiKey, "example_manifest", "Chatbot", CommandRequest{})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp broker.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	doc, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	require.Equal(t, "Chatbot", doc["kind"])
}
