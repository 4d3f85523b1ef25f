package secret

import (
	"errors"
	"net/http"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/smarter-sh/smarter/pkg/broker"
	"github.com/smarter-sh/smarter/pkg/events"
	"github.com/smarter-sh/smarter/pkg/manifest"
	"github.com/smarter-sh/smarter/pkg/storage"
	"github.com/smarter-sh/smarter/pkg/types"
)

// Broker reconciles Secret manifests against encrypted secret records.
// The plaintext value exists only in the inbound manifest; everything
// persisted or rendered is ciphertext or redaction.
type Broker struct {
	broker.Base
	meta   *manifest.Metadata
	spec   *Spec
	record *types.Secret
}

// New constructs the Secret broker.
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
		b.spec = &spec
	}

	if ctx.Account != nil && b.Name != "" {
		record, err := cfg.Store.GetSecretByName(ctx.Account.ID, b.Name)
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

// Apply encrypts the supplied value and creates or updates the secret
// record for (account, name). A manifest without a value may still
// update the description and expiration of an existing secret; for a
// new secret the value is required.
func (b *Broker) Apply() (*broker.Response, error) {
	if !b.Ctx.Ready() {
		return nil, &broker.NotReadyError{Kind: Kind, Name: b.Name}
	}
	if b.spec == nil {
		return nil, &broker.NotReadyError{Kind: Kind, Name: b.Name}
	}
	if b.record == nil && b.spec.Value == "" {
		return nil, manifest.NewValidationError(Kind, "spec.value", "Field required")
	}

	var expiresAt time.Time
	if b.spec.ExpirationDate != "" {
		parsed, err := time.Parse("2006-01-02", b.spec.ExpirationDate)
		if err != nil {
			return nil, manifest.NewValidationError(Kind, "spec.expirationDate",
				"Input should be a date in the form 2006-01-02")
		}
		expiresAt = parsed
	}

	record, err := b.GetOrCreateSecret(b.meta.Name, b.spec.Value, b.meta.Description, expiresAt)
	if err != nil {
		return nil, err
	}

	// A value-less re-apply still reconciles the secret's metadata.
	changed := false
	if b.meta.Description != "" && record.Description != b.meta.Description {
		record.Description = b.meta.Description
		changed = true
	}
	if !expiresAt.IsZero() && !record.ExpiresAt.Equal(expiresAt) {
		record.ExpiresAt = expiresAt
		changed = true
	}
	if record.Version != b.meta.Version {
		record.Version = b.meta.Version
		changed = true
	}
	if !slices.Equal(record.Tags, b.meta.Tags) {
		record.Tags = b.meta.Tags
		changed = true
	}
	if changed {
		record.UpdatedAt = time.Now().UTC()
		if err := b.Store.UpdateSecret(record); err != nil {
			return nil, broker.NewError(err, "failed to persist %s %s", Kind, record.Name)
		}
	}
	b.record = record
	b.Located()

	b.Log.Info().Str("name", record.Name).Msg("secret applied")
	return broker.NewSuccess(Kind, broker.CommandApply, b.document(record),
		broker.SuccessMessage(Kind, record.Name, broker.CommandApply)), nil
}

// Get queries secrets by name or, with AllObjects, every secret in
// scope. Values are never included.
func (b *Broker) Get(params broker.GetParams) (*broker.Response, error) {
	if !b.Ctx.Ready() {
		return nil, &broker.NotReadyError{Kind: Kind, Name: b.Name}
	}

	var records []*types.Secret
	if params.AllObjects || (params.Name == "" && b.Name == "") {
		all, err := b.Store.ListSecrets(b.Ctx.Account.ID)
		if err != nil {
			return nil, broker.NewError(err, "failed to list %s records", Kind)
		}
		records = all
	} else if b.record != nil {
		records = []*types.Secret{b.record}
	}

	items := make([]any, 0, len(records))
	for _, record := range records {
		if !broker.MatchesTags(record.Tags, params.Tags) {
			continue
		}
		items = append(items, b.document(record))
	}

	resp := broker.NewSuccess(Kind, broker.CommandGet, &broker.ListData{
		Count:  len(items),
		Items:  items,
		Titles: titles,
	}, broker.SuccessMessage(Kind, params.Name, broker.CommandGet)).WithCount(len(items))
	if len(items) == 0 {
		resp.WithStatus(http.StatusNotFound)
	}
	return resp, nil
}

// Describe renders the full current document for a single secret, value
// redacted.
func (b *Broker) Describe() (*broker.Response, error) {
	if !b.Ctx.Ready() || b.record == nil {
		return nil, &broker.NotReadyError{Kind: Kind, Name: b.Name}
	}
	return broker.NewSuccess(Kind, broker.CommandDescribe, b.document(b.record),
		broker.SuccessMessage(Kind, b.record.Name, broker.CommandDescribe)), nil
}

// Delete removes the secret record for (account, name). Resources still
// referencing it will fail to resolve it afterwards.
func (b *Broker) Delete() (*broker.Response, error) {
	if !b.Ctx.Ready() || b.record == nil {
		return nil, &broker.NotReadyError{Kind: Kind, Name: b.Name}
	}

	if err := b.Store.DeleteSecret(b.record.ID); err != nil {
		return nil, broker.NewError(err, "failed to delete %s %s", Kind, b.record.Name)
	}
	name := b.record.Name
	b.record = nil

	b.Publish(events.EventSecretDeleted, Kind, name)
	return broker.NewSuccess(Kind, broker.CommandDelete, nil,
		broker.SuccessMessage(Kind, name, broker.CommandDelete)), nil
}

// Schema returns the JSON Schema of the Secret document.
func (b *Broker) Schema() (*broker.Response, error) {
	schema, err := manifest.JSONSchema(&Document{})
	if err != nil {
		return nil, broker.NewError(err, "failed to render %s schema", Kind)
	}
	return broker.NewSuccess(Kind, broker.CommandSchema, schema,
		broker.SuccessMessage(Kind, "", broker.CommandSchema)), nil
}

// ExampleManifest returns a representative Secret manifest.
func (b *Broker) ExampleManifest() (*broker.Response, error) {
	var doc map[string]any
	if err := yaml.Unmarshal([]byte(exampleManifest), &doc); err != nil {
		return nil, broker.NewError(err, "failed to parse %s example manifest", Kind)
	}
	return broker.NewSuccess(Kind, broker.CommandExampleManifest, doc,
		broker.SuccessMessage(Kind, "", broker.CommandExampleManifest)), nil
}

// document projects a persisted secret record into manifest form. The
// value is always redacted; ciphertext never leaves the store either.
func (b *Broker) document(record *types.Secret) *manifest.Envelope {
	spec := Spec{Value: redacted}
	if !record.ExpiresAt.IsZero() {
		spec.ExpirationDate = record.ExpiresAt.UTC().Format("2006-01-02")
	}
	status := Status{
		Status: manifest.Status{
			Created:  record.CreatedAt,
			Modified: record.UpdatedAt,
		},
		Expired: !record.ExpiresAt.IsZero() && record.ExpiresAt.Before(time.Now().UTC()),
	}
	if !record.ExpiresAt.IsZero() {
		status.ExpiresAt = record.ExpiresAt.UTC().Format(time.RFC3339)
	}
	meta := manifest.Metadata{
		Name:        record.Name,
		Description: record.Description,
		Version:     record.Version,
		Tags:        record.Tags,
	}
	return manifest.NewEnvelope(Kind, meta, spec, status)
}
