package sqlplugin

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/smarter-sh/smarter/pkg/broker"
	"github.com/smarter-sh/smarter/pkg/events"
	"github.com/smarter-sh/smarter/pkg/manifest"
	"github.com/smarter-sh/smarter/pkg/storage"
	"github.com/smarter-sh/smarter/pkg/types"
)

// Broker reconciles SqlPlugin manifests against persisted plugin
// records of class "sql". Because a SQL plugin executes arbitrary
// queries against tenant databases, mutating commands are restricted
// to staff users.
type Broker struct {
	broker.Base
	meta   *manifest.Metadata
	spec   *Spec
	record *types.Plugin
}

// New constructs the SqlPlugin broker.
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
		record, err := cfg.Store.GetPluginByName(ctx.Account.ID, b.Name)
		switch {
		case err == nil:
			if record.Class == types.PluginClassSql {
				b.record = record
				b.Located()
			}
		case !errors.Is(err, storage.ErrNotFound):
			return nil, broker.NewError(err, "failed to look up %s %s", Kind, b.Name)
		}
	}

	return b, nil
}

func (b *Broker) Kind() string { return Kind }

// Apply creates or updates the plugin record for (account, name). The
// referenced SqlConnection must already exist in the account's scope.
// Staff only.
func (b *Broker) Apply() (*broker.Response, error) {
	if !b.Ctx.Ready() {
		return nil, &broker.NotReadyError{Kind: Kind, Name: b.Name}
	}
	if !b.Ctx.Staff() {
		return nil, &broker.PermissionError{Kind: Kind, Command: broker.CommandApply}
	}
	if b.spec == nil {
		return nil, &broker.NotReadyError{Kind: Kind, Name: b.Name}
	}

	if _, err := b.Store.GetSqlConnectionByName(b.Ctx.Account.ID, b.spec.Data.Connection); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, manifest.NewValidationError(Kind, "spec.data.connection",
				"SqlConnection %s not found", b.spec.Data.Connection)
		}
		return nil, broker.NewError(err, "failed to look up connection %s", b.spec.Data.Connection)
	}

	now := time.Now().UTC()
	record := b.record
	created := record == nil
	if created {
		record = &types.Plugin{
			ID:        uuid.NewString(),
			AccountID: b.Ctx.Account.ID,
			Name:      b.meta.Name,
			Class:     types.PluginClassSql,
			CreatedAt: now,
		}
	}

	record.Description = b.meta.Description
	record.Version = b.meta.Version
	record.Tags = b.meta.Tags
	record.SystemRole = b.spec.Prompt.SystemRole
	record.Model = b.spec.Prompt.Model
	record.Temperature = b.spec.Prompt.Temperature
	record.MaxTokens = b.spec.Prompt.MaxTokens
	record.Directive = b.spec.Selector.Directive
	record.SearchTerms = b.spec.Selector.SearchTerms
	record.SqlQuery = b.spec.Data.SqlQuery
	record.ConnectionName = b.spec.Data.Connection
	record.Parameters = b.spec.Data.Parameters
	record.UpdatedAt = now

	var err error
	if created {
		err = b.Store.CreatePlugin(record)
	} else {
		err = b.Store.UpdatePlugin(record)
	}
	if err != nil {
		return nil, broker.NewError(err, "failed to persist %s %s", Kind, record.Name)
	}
	b.record = record

	b.Publish(events.EventResourceApplied, Kind, record.Name)
	b.Log.Info().Str("name", record.Name).Bool("created", created).Msg("plugin applied")

	return broker.NewSuccess(Kind, broker.CommandApply, b.document(record),
		broker.SuccessMessage(Kind, record.Name, broker.CommandApply)), nil
}

// Get queries sql plugins by name or, with AllObjects, every sql plugin
// in scope.
func (b *Broker) Get(params broker.GetParams) (*broker.Response, error) {
	if !b.Ctx.Ready() {
		return nil, &broker.NotReadyError{Kind: Kind, Name: b.Name}
	}

	var records []*types.Plugin
	if params.AllObjects || (params.Name == "" && b.Name == "") {
		all, err := b.Store.ListPlugins(b.Ctx.Account.ID)
		if err != nil {
			return nil, broker.NewError(err, "failed to list %s records", Kind)
		}
		for _, record := range all {
			if record.Class == types.PluginClassSql {
				records = append(records, record)
			}
		}
	} else if b.record != nil {
		records = []*types.Plugin{b.record}
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

// Describe renders the full current document for a single plugin.
func (b *Broker) Describe() (*broker.Response, error) {
	if !b.Ctx.Ready() || b.record == nil {
		return nil, &broker.NotReadyError{Kind: Kind, Name: b.Name}
	}
	return broker.NewSuccess(Kind, broker.CommandDescribe, b.document(b.record),
		broker.SuccessMessage(Kind, b.record.Name, broker.CommandDescribe)), nil
}

// Delete removes the plugin record for (account, name). Staff only.
func (b *Broker) Delete() (*broker.Response, error) {
	if !b.Ctx.Ready() || b.record == nil {
		return nil, &broker.NotReadyError{Kind: Kind, Name: b.Name}
	}
	if !b.Ctx.Staff() {
		return nil, &broker.PermissionError{Kind: Kind, Command: broker.CommandDelete}
	}

	if err := b.Store.DeletePlugin(b.record.ID); err != nil {
		return nil, broker.NewError(err, "failed to delete %s %s", Kind, b.record.Name)
	}
	name := b.record.Name
	b.record = nil

	b.Publish(events.EventResourceDeleted, Kind, name)
	return broker.NewSuccess(Kind, broker.CommandDelete, nil,
		broker.SuccessMessage(Kind, name, broker.CommandDelete)), nil
}

// Schema returns the JSON Schema of the SqlPlugin document.
func (b *Broker) Schema() (*broker.Response, error) {
	schema, err := manifest.JSONSchema(&Document{})
	if err != nil {
		return nil, broker.NewError(err, "failed to render %s schema", Kind)
	}
	return broker.NewSuccess(Kind, broker.CommandSchema, schema,
		broker.SuccessMessage(Kind, "", broker.CommandSchema)), nil
}

// ExampleManifest returns a representative SqlPlugin manifest.
func (b *Broker) ExampleManifest() (*broker.Response, error) {
	var doc map[string]any
	if err := yaml.Unmarshal([]byte(exampleManifest), &doc); err != nil {
		return nil, broker.NewError(err, "failed to parse %s example manifest", Kind)
	}
	return broker.NewSuccess(Kind, broker.CommandExampleManifest, doc,
		broker.SuccessMessage(Kind, "", broker.CommandExampleManifest)), nil
}

// document projects a persisted plugin record into manifest form.
func (b *Broker) document(record *types.Plugin) *manifest.Envelope {
	spec := Spec{
		Prompt: PromptSpec{
			SystemRole:  record.SystemRole,
			Model:       record.Model,
			Temperature: record.Temperature,
			MaxTokens:   record.MaxTokens,
		},
		Selector: SelectorSpec{
			Directive:   record.Directive,
			SearchTerms: record.SearchTerms,
		},
		Data: DataSpec{
			Description: record.Description,
			Connection:  record.ConnectionName,
			SqlQuery:    record.SqlQuery,
			Parameters:  record.Parameters,
		},
	}
	status := Status{
		Status: manifest.Status{
			Created:  record.CreatedAt,
			Modified: record.UpdatedAt,
		},
		Class: string(record.Class),
	}
	meta := manifest.Metadata{
		Name:        record.Name,
		Description: record.Description,
		Version:     record.Version,
		Tags:        record.Tags,
	}
	return manifest.NewEnvelope(Kind, meta, spec, status)
}
