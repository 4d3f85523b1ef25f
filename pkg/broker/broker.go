package broker

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/smarter-sh/smarter/pkg/events"
	"github.com/smarter-sh/smarter/pkg/log"
	"github.com/smarter-sh/smarter/pkg/manifest"
	"github.com/smarter-sh/smarter/pkg/metrics"
	"github.com/smarter-sh/smarter/pkg/security"
	"github.com/smarter-sh/smarter/pkg/storage"
	"github.com/smarter-sh/smarter/pkg/types"
)

// Context is the authenticated tenant context a command executes in.
// The broker never authenticates; the transport layer resolves this
// before a broker is constructed.
type Context struct {
	Account *types.Account
	User    *types.User
	Profile *types.UserProfile
}

// Ready reports whether enough context is present to execute a command.
func (c Context) Ready() bool {
	return c.Account != nil && c.User != nil
}

// Staff reports whether the context user holds the staff role.
func (c Context) Staff() bool {
	return c.User != nil && (c.User.IsStaff || c.User.IsAdmin)
}

// CompletionClient is the contract for the chat completion collaborator.
// Orchestration against LLM providers lives outside this subsystem.
type CompletionClient interface {
	Complete(model string, temperature float64, maxTokens int, messages []types.ChatMessage) (string, error)
}

// Config carries the shared collaborators injected into every broker.
type Config struct {
	Store       storage.Store
	Secrets     *security.Manager
	Events      *events.Bus
	Completions CompletionClient
}

// Options carries the per-command inputs a broker is constructed with.
type Options struct {
	Manifest []byte // raw YAML/JSON text, if supplied
	Name     string // resource name, for commands without a manifest
}

// Source tags where a broker's document comes from. It is computed once
// at construction; there is no lazy-property state machine to race.
type Source int

const (
	// SourceUnresolved means neither a manifest nor a record is
	// available yet.
	SourceUnresolved Source = iota
	// SourceFromLoader means the document was built from supplied
	// manifest text.
	SourceFromLoader
	// SourceFromRecord means the document is a projection of a located
	// persisted record.
	SourceFromRecord
)

func (s Source) String() string {
	switch s {
	case SourceFromLoader:
		return "loader"
	case SourceFromRecord:
		return "record"
	default:
		return "unresolved"
	}
}

// Base holds the state and helpers shared by every concrete broker.
// A broker instance lives for exactly one command invocation.
type Base struct {
	Config
	Ctx    Context
	Loader *manifest.Loader
	Name   string
	Src    Source
	Log    zerolog.Logger
}

// NewBase constructs the shared broker state. If manifest text was
// supplied the loader is built and structurally validated here, and the
// manifest kind must match the broker's kind — an unknown or mismatched
// kind fails before any persistence access.
func NewBase(kind string, cfg Config, ctx Context, opts Options) (Base, error) {
	b := Base{
		Config: cfg,
		Ctx:    ctx,
		Name:   opts.Name,
		Src:    SourceUnresolved,
		Log:    log.WithKind(kind),
	}

	if len(opts.Manifest) > 0 {
		loader, err := manifest.NewLoader(manifest.Source{
			Manifest: opts.Manifest,
		})
		if err != nil {
			return Base{}, err
		}
		if err := manifest.ValidateKind(kind, loader.Kind()); err != nil {
			return Base{}, err
		}
		if err := manifest.ValidateAPIVersion(kind, loader.APIVersion()); err != nil {
			return Base{}, err
		}
		b.Loader = loader
		b.Src = SourceFromLoader
		if name, ok := loader.Metadata()["name"].(string); ok {
			b.Name = name
		}
	}

	return b, nil
}

// Located marks the broker as backed by a persisted record when no
// loader is present.
func (b *Base) Located() {
	if b.Src == SourceUnresolved {
		b.Src = SourceFromRecord
	}
}

// DecodeMetadata decodes and validates the loader's metadata section.
func (b *Base) DecodeMetadata(kind string) (*manifest.Metadata, error) {
	var meta manifest.Metadata
	if err := manifest.Decode(kind, "metadata", b.Loader.Metadata(), &meta); err != nil {
		metrics.ValidationFailuresTotal.WithLabelValues(kind).Inc()
		return nil, err
	}
	return &meta, nil
}

// GetOrCreateSecret implements the secret indirection: look up an
// existing Secret by name within the tenant's scope; on a miss, encrypt
// the supplied plaintext and create one. A miss with no plaintext is a
// broker error — there is nothing to materialize.
//
// When the secret already exists and a new plaintext was supplied, the
// secret's value is re-encrypted in place, matching apply's
// update-in-place semantics.
func (b *Base) GetOrCreateSecret(name, value, description string, expiresAt time.Time) (*types.Secret, error) {
	if b.Ctx.Account == nil {
		return nil, &NotReadyError{Kind: "Secret", Name: name}
	}

	existing, err := b.Store.GetSecretByName(b.Ctx.Account.ID, name)
	if err == nil {
		if value == "" {
			return existing, nil
		}
		encrypted, err := b.Secrets.Encrypt([]byte(value))
		if err != nil {
			return nil, NewError(err, "failed to encrypt secret %s", name)
		}
		existing.Data = encrypted
		if description != "" {
			existing.Description = description
		}
		if !expiresAt.IsZero() {
			existing.ExpiresAt = expiresAt
		}
		existing.UpdatedAt = time.Now().UTC()
		if err := b.Store.UpdateSecret(existing); err != nil {
			return nil, NewError(err, "failed to update secret %s", name)
		}
		return existing, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, NewError(err, "failed to look up secret %s", name)
	}

	if value == "" {
		return nil, NewError(nil, "cannot materialize secret %s: no value supplied and no existing secret by that name", name)
	}

	userID := ""
	if b.Ctx.User != nil {
		userID = b.Ctx.User.ID
	}
	secret, err := b.Secrets.Seal(b.Ctx.Account.ID, userID, name, description, []byte(value), expiresAt)
	if err != nil {
		return nil, NewError(err, "failed to seal secret %s", name)
	}
	if err := b.Store.CreateSecret(secret); err != nil {
		return nil, NewError(err, "failed to create secret %s", name)
	}

	metrics.SecretsCreatedTotal.Inc()
	b.Publish(events.EventSecretCreated, "Secret", name)
	return secret, nil
}

// SecretName resolves a stored secret reference back to the secret's
// name, which is what rendered documents expose instead of plaintext.
func (b *Base) SecretName(secretID string) string {
	if secretID == "" {
		return ""
	}
	secret, err := b.Store.GetSecret(secretID)
	if err != nil {
		return ""
	}
	return secret.Name
}

// Publish emits a fire-and-forget lifecycle event. Nothing in the
// command path waits on delivery.
func (b *Base) Publish(eventType events.EventType, kind, name string) {
	if b.Events == nil {
		return
	}
	accountNumber := ""
	if b.Ctx.Account != nil {
		accountNumber = b.Ctx.Account.AccountNumber
	}
	b.Events.Publish(&events.Event{
		Type:          eventType,
		AccountNumber: accountNumber,
		Kind:          kind,
		Name:          name,
	})
}

// ToMap converts a typed record or spec into its JSON field mapping,
// the working representation of the projection layer.
func ToMap(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to map record: %w", err)
	}
	return out, nil
}

// MergeMap overlays projected field values onto a typed record,
// leaving fields absent from the map untouched.
func MergeMap(record any, fields map[string]any) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to marshal fields: %w", err)
	}
	if err := json.Unmarshal(raw, record); err != nil {
		return fmt.Errorf("failed to merge fields into record: %w", err)
	}
	return nil
}
