package sqlconnection

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/smarter-sh/smarter/pkg/broker"
	"github.com/smarter-sh/smarter/pkg/events"
	"github.com/smarter-sh/smarter/pkg/manifest"
	"github.com/smarter-sh/smarter/pkg/storage"
	"github.com/smarter-sh/smarter/pkg/types"
)

// Broker reconciles SqlConnection manifests against persisted
// connection records. One instance serves one command.
type Broker struct {
	broker.Base
	meta   *manifest.Metadata
	spec   *Spec
	record *types.SqlConnection
}

// New constructs the SqlConnection broker. Manifest validation happens
// here, before any persistence access; record lookup happens here too,
// so the document source is fixed at construction.
func New(cfg broker.Config, ctx broker.Context, opts broker.Options) (broker.Broker, error) {
	base, err := broker.NewBase(Kind, cfg, ctx, opts)
	if err != nil {
		return nil, err
	}
	b := &Broker{Base: base}

	if b.Src == broker.SourceFromLoader {
		if b.meta, err = b.DecodeMetadata(Kind); err != nil {
			return nil, err
		}
		var spec Spec
		if err := manifest.Decode(Kind, "spec", b.Loader.Spec(), &spec); err != nil {
			return nil, err
		}
		if spec.DbEngine != types.DbEngineSQLite && spec.Hostname == "" {
			return nil, manifest.NewValidationError(Kind, "spec.hostname", "Field required")
		}
		b.spec = &spec
	}

	if ctx.Account != nil && b.Name != "" {
		record, err := cfg.Store.GetSqlConnectionByName(ctx.Account.ID, b.Name)
		switch {
		case err == nil:
			b.record = record
			b.Located()
		case !errors.Is(err, storage.ErrNotFound):
			return nil, broker.NewError(err, "failed to look up %s %s", Kind, b.Name)
		}
	}

	return b, nil
}

func (b *Broker) Kind() string { return Kind }

// Apply is the idempotent upsert: project the document spec into record
// fields, substitute secret references, and create or update the record
// for (account, name). Read-then-write; a concurrent apply for the same
// name races at the store and the last writer wins.
func (b *Broker) Apply() (*broker.Response, error) {
	if !b.Ctx.Ready() {
		return nil, &broker.NotReadyError{Kind: Kind, Name: b.Name}
	}
	if b.spec == nil {
		return nil, &broker.NotReadyError{Kind: Kind, Name: b.Name}
	}

	specMap, err := broker.ToMap(b.spec)
	if err != nil {
		return nil, broker.NewError(err, "failed to project %s spec", Kind)
	}
	fields, err := Fields.ToRecord(specMap, b.resolveSecret)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	record := b.record
	created := record == nil
	if created {
		record = &types.SqlConnection{
			ID:        uuid.NewString(),
			AccountID: b.Ctx.Account.ID,
			Name:      b.meta.Name,
			CreatedAt: now,
		}
	}
	if err := broker.MergeMap(record, fields); err != nil {
		return nil, broker.NewError(err, "failed to merge %s fields", Kind)
	}

	record.Description = b.meta.Description
	record.Version = b.meta.Version
	record.Tags = b.meta.Tags
	record.UpdatedAt = now
	if record.PoolSize == 0 {
		record.PoolSize = defaultPoolSize
	}
	if record.MaxOverflow == 0 {
		record.MaxOverflow = defaultMaxOverflow
	}
	if record.Timeout == 0 {
		record.Timeout = defaultTimeout
	}
	_, err = connectionString(record, false)
	record.IsValid = err == nil

	if created {
		err = b.Store.CreateSqlConnection(record)
	} else {
		err = b.Store.UpdateSqlConnection(record)
	}
	if err != nil {
		return nil, broker.NewError(err, "failed to persist %s %s", Kind, record.Name)
	}
	b.record = record

	b.Publish(events.EventResourceApplied, Kind, record.Name)
	b.Log.Info().Str("name", record.Name).Bool("created", created).Msg("connection applied")

	doc, err := b.document(record)
	if err != nil {
		return nil, err
	}
	return broker.NewSuccess(Kind, broker.CommandApply, doc,
		broker.SuccessMessage(Kind, record.Name, broker.CommandApply)), nil
}

// Get queries connections by exact name or, with AllObjects, every
// connection in the account's scope. A filter that matches nothing is a
// NotFound response with an empty item list, not an error.
func (b *Broker) Get(params broker.GetParams) (*broker.Response, error) {
	if !b.Ctx.Ready() {
		return nil, &broker.NotReadyError{Kind: Kind, Name: b.Name}
	}

	name := params.Name
	if name == "" {
		name = b.Name
	}

	var records []*types.SqlConnection
	if params.AllObjects || name == "" {
		all, err := b.Store.ListSqlConnections(b.Ctx.Account.ID)
		if err != nil {
			return nil, broker.NewError(err, "failed to list %s records", Kind)
		}
		records = all
	} else if b.record != nil {
		records = []*types.SqlConnection{b.record}
	}
	records = filterByTags(records, params.Tags)

	items := make([]any, 0, len(records))
	for _, record := range records {
		doc, err := b.document(record)
		if err != nil {
			return nil, err
		}
		items = append(items, doc)
	}

	resp := broker.NewSuccess(Kind, broker.CommandGet, &broker.ListData{
		Count:  len(items),
		Items:  items,
		Titles: titles,
	}, broker.SuccessMessage(Kind, name, broker.CommandGet)).WithCount(len(items))
	if len(items) == 0 {
		resp.WithStatus(http.StatusNotFound)
	}
	return resp, nil
}

// Describe renders the full current document for a single named
// connection.
func (b *Broker) Describe() (*broker.Response, error) {
	if !b.Ctx.Ready() || b.record == nil {
		return nil, &broker.NotReadyError{Kind: Kind, Name: b.Name}
	}
	doc, err := b.document(b.record)
	if err != nil {
		return nil, err
	}
	return broker.NewSuccess(Kind, broker.CommandDescribe, doc,
		broker.SuccessMessage(Kind, b.record.Name, broker.CommandDescribe)), nil
}

// Delete removes the persisted record for (account, name).
func (b *Broker) Delete() (*broker.Response, error) {
	if !b.Ctx.Ready() || b.record == nil {
		return nil, &broker.NotReadyError{Kind: Kind, Name: b.Name}
	}

	if err := b.Store.DeleteSqlConnection(b.record.ID); err != nil {
		return nil, broker.NewError(err, "failed to delete %s %s", Kind, b.record.Name)
	}
	name := b.record.Name
	b.record = nil

	b.Publish(events.EventResourceDeleted, Kind, name)
	return broker.NewSuccess(Kind, broker.CommandDelete, nil,
		broker.SuccessMessage(Kind, name, broker.CommandDelete)), nil
}

// Schema returns the JSON Schema of the SqlConnection document.
func (b *Broker) Schema() (*broker.Response, error) {
	schema, err := manifest.JSONSchema(&Document{})
	if err != nil {
		return nil, broker.NewError(err, "failed to render %s schema", Kind)
	}
	return broker.NewSuccess(Kind, broker.CommandSchema, schema,
		broker.SuccessMessage(Kind, "", broker.CommandSchema)), nil
}

// ExampleManifest returns a syntactically valid, representative
// manifest, independent of any persisted state.
func (b *Broker) ExampleManifest() (*broker.Response, error) {
	var doc map[string]any
	if err := yaml.Unmarshal([]byte(exampleManifest), &doc); err != nil {
		return nil, broker.NewError(err, "failed to parse %s example manifest", Kind)
	}
	return broker.NewSuccess(Kind, broker.CommandExampleManifest, doc,
		broker.SuccessMessage(Kind, "", broker.CommandExampleManifest)), nil
}

// resolveSecret converts a password field value into a secret
// reference. A value naming an existing secret is used as-is; any other
// value is treated as plaintext and sealed into a secret derived from
// the connection name.
func (b *Broker) resolveSecret(field manifest.FieldSpec, value any) (any, error) {
	plaintext, _ := value.(string)
	if plaintext == "" {
		if b.record != nil {
			existing, err := broker.ToMap(b.record)
			if err == nil {
				if id, ok := existing[field.Record].(string); ok {
					return id, nil
				}
			}
		}
		return "", nil
	}

	if existing, err := b.Store.GetSecretByName(b.Ctx.Account.ID, plaintext); err == nil {
		return existing.ID, nil
	}

	secretName := fmt.Sprintf("%s-%s", b.Name,
		strings.ReplaceAll(strings.TrimSuffix(field.Record, "_secret_id"), "_", "-"))
	secret, err := b.GetOrCreateSecret(secretName, plaintext,
		fmt.Sprintf("credentials for %s %s", Kind, b.Name), time.Time{})
	if err != nil {
		return nil, err
	}
	return secret.ID, nil
}

// maskSecret replaces a stored secret reference with the secret's name
// for rendered documents.
func (b *Broker) maskSecret(field manifest.FieldSpec, value any) any {
	id, _ := value.(string)
	return b.SecretName(id)
}

// document projects a persisted record into its manifest document form.
func (b *Broker) document(record *types.SqlConnection) (*manifest.Envelope, error) {
	recordMap, err := broker.ToMap(record)
	if err != nil {
		return nil, broker.NewError(err, "failed to project %s record", Kind)
	}
	// Identity and status fields surface through metadata/status, not
	// spec.
	for _, key := range []string{"name", "description", "version", "tags", "is_valid"} {
		delete(recordMap, key)
	}

	specMap := Fields.ToDocument(recordMap, b.maskSecret)
	var spec Spec
	if err := broker.MergeMap(&spec, specMap); err != nil {
		return nil, broker.NewError(err, "failed to decode %s spec projection", Kind)
	}

	connString, _ := connectionString(record, true)
	status := Status{
		Status: manifest.Status{
			Created:  record.CreatedAt,
			Modified: record.UpdatedAt,
		},
		ConnectionString: connString,
		IsValid:          record.IsValid,
	}
	meta := manifest.Metadata{
		Name:        record.Name,
		Description: record.Description,
		Version:     record.Version,
		Tags:        record.Tags,
	}
	return manifest.NewEnvelope(Kind, meta, spec, status), nil
}

// connectionString builds the DSN for a record. With sanitize set the
// credential portion is redacted; the unsanitized form is only ever
// used to test constructibility, never returned.
func connectionString(record *types.SqlConnection, sanitize bool) (string, error) {
	scheme, ok := map[types.DbEngine]string{
		types.DbEngineMySQL:    "mysql",
		types.DbEnginePostgres: "postgresql",
		types.DbEngineOracle:   "oracle",
		types.DbEngineSQLite:   "sqlite",
	}[record.DbEngine]
	if !ok {
		return "", fmt.Errorf("unsupported db engine %q", record.DbEngine)
	}

	if record.DbEngine == types.DbEngineSQLite {
		if record.Database == "" {
			return "", fmt.Errorf("sqlite connection requires a database path")
		}
		return fmt.Sprintf("%s:///%s", scheme, record.Database), nil
	}

	if record.Hostname == "" || record.Database == "" {
		return "", fmt.Errorf("connection requires hostname and database")
	}
	port := record.Port
	if port == 0 {
		return "", fmt.Errorf("connection requires a port")
	}

	auth := ""
	if record.Username != "" {
		if sanitize {
			auth = record.Username + ":***@"
		} else {
			auth = record.Username + "@"
		}
	}
	return fmt.Sprintf("%s://%s%s:%d/%s", scheme, auth, record.Hostname, port, record.Database), nil
}

// filterByTags keeps records carrying every requested tag.
func filterByTags(records []*types.SqlConnection, tags []string) []*types.SqlConnection {
	if len(tags) == 0 {
		return records
	}
	filtered := make([]*types.SqlConnection, 0, len(records))
	for _, record := range records {
		if broker.MatchesTags(record.Tags, tags) {
			filtered = append(filtered, record)
		}
	}
	return filtered
}
