package sqlplugin

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
kind: SqlPlugin
metadata:
  name: order-status
  description: Order status lookup.
  version: 1.0.0
spec:
  prompt:
    systemRole: You answer order-status questions.
  selector:
    searchTerms:
      - order
  data:
    connection: sales-db
    sqlQuery: SELECT status FROM orders WHERE order_id = {order_id}
    parameters:
      order_id: the customer's order number
`

func newTestConfig(t *testing.T) (broker.Config, broker.Context) {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "smarter-sqlplugin-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	store, err := storage.NewBoltStore(tmpDir)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	secrets, err := security.NewManagerFromPassphrase("test-passphrase")
	require.NoError(t, err)

	account := &types.Account{ID: "acct-1", AccountNumber: "0000-0000-0001"}
	require.NoError(t, store.CreateAccount(account))
	user := &types.User{ID: "user-1", AccountID: "acct-1", Username: "admin", IsStaff: true, IsAdmin: true}
	require.NoError(t, store.CreateUser(user))

	require.NoError(t, store.CreateSqlConnection(&types.SqlConnection{
		ID:        "conn-1",
		AccountID: "acct-1",
		Name:      "sales-db",
	}))

	return broker.Config{Store: store, Secrets: secrets}, broker.Context{Account: account, User: user}
}

func TestApplyPersistsSqlPlugin(t *testing.T) {
	cfg, ctx := newTestConfig(t)

	b, err := New(cfg, ctx, broker.Options{Manifest: []byte(applyManifest)})
	require.NoError(t, err)
	resp, err := b.Apply()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())

	record, err := cfg.Store.GetPluginByName("acct-1", "order-status")
	require.NoError(t, err)
	require.Equal(t, types.PluginClassSql, record.Class)
	require.Equal(t, "sales-db", record.ConnectionName)
	require.Equal(t, "SELECT status FROM orders WHERE order_id = {order_id}", record.SqlQuery)
	require.Equal(t, "the customer's order number", record.Parameters["order_id"])
}

func TestApplyRequiresStaff(t *testing.T) {
	cfg, ctx := newTestConfig(t)
	ctx.User = &types.User{ID: "user-2", AccountID: "acct-1", Username: "viewer"}

	b, err := New(cfg, ctx, broker.Options{Manifest: []byte(applyManifest)})
	require.NoError(t, err)

	_, err = b.Apply()
	var permErr *broker.PermissionError
	require.ErrorAs(t, err, &permErr)
}

func TestApplyUnknownConnectionFails(t *testing.T) {
	cfg, ctx := newTestConfig(t)

	bad := strings.Replace(applyManifest, "sales-db", "no-such-db", 1)
	b, err := New(cfg, ctx, broker.Options{Manifest: []byte(bad)})
	require.NoError(t, err)

	_, err = b.Apply()
	var ve *manifest.ValidationError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, "spec.data.connection", ve.Fields[0].Path)
}

func TestGetFiltersByClass(t *testing.T) {
	cfg, ctx := newTestConfig(t)

	// A static plugin under the same account must not surface here.
	require.NoError(t, cfg.Store.CreatePlugin(&types.Plugin{
		ID:        "plugin-static",
		AccountID: "acct-1",
		Name:      "company-info",
		Class:     types.PluginClassStatic,
	}))

	b, err := New(cfg, ctx, broker.Options{Manifest: []byte(applyManifest)})
	require.NoError(t, err)
	_, err = b.Apply()
	require.NoError(t, err)

	b2, err := New(cfg, ctx, broker.Options{})
	require.NoError(t, err)
	resp, err := b2.Get(broker.GetParams{AllObjects: true})
	require.NoError(t, err)

	data := resp.Data.(*broker.ListData)
	require.Equal(t, 1, data.Count)
}

func TestBrokerIgnoresStaticPluginOfSameName(t *testing.T) {
	cfg, ctx := newTestConfig(t)

	require.NoError(t, cfg.Store.CreatePlugin(&types.Plugin{
		ID:        "plugin-static",
		AccountID: "acct-1",
		Name:      "order-status",
		Class:     types.PluginClassStatic,
	}))

	b, err := New(cfg, ctx, broker.Options{Name: "order-status"})
	require.NoError(t, err)

	_, err = b.Describe()
	var notReady *broker.NotReadyError
	require.ErrorAs(t, err, &notReady)
}

func TestDeleteRequiresStaff(t *testing.T) {
	cfg, ctx := newTestConfig(t)

	b, err := New(cfg, ctx, broker.Options{Manifest: []byte(applyManifest)})
	require.NoError(t, err)
	_, err = b.Apply()
	require.NoError(t, err)

	viewer := ctx
	viewer.User = &types.User{ID: "user-2", AccountID: "acct-1", Username: "viewer"}
	b2, err := New(cfg, viewer, broker.Options{Name: "order-status"})
	require.NoError(t, err)

	_, err = b2.Delete()
	var permErr *broker.PermissionError
	require.ErrorAs(t, err, &permErr)

	b3, err := New(cfg, ctx, broker.Options{Name: "order-status"})
	require.NoError(t, err)
	_, err = b3.Delete()
	require.NoError(t, err)

	_, err = cfg.Store.GetPluginByName("acct-1", "order-status")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestExampleManifestIsLoadable(t *testing.T) {
	cfg, ctx := newTestConfig(t)

	b, err := New(cfg, ctx, broker.Options{})
	require.NoError(t, err)
	resp, err := b.ExampleManifest()
	require.NoError(t, err)

	doc := resp.Data.(map[string]any)
	require.Equal(t, Kind, doc["kind"])
}
