package broker

import (
	"slices"
	"sort"
	"strings"

	"github.com/smarter-sh/smarter/pkg/manifest"
)

// GetParams are the query parameters of a get command.
type GetParams struct {
	Name       string
	AllObjects bool
	Tags       []string
}

// MatchesTags reports whether a record's tags satisfy a tag filter: the
// record must carry every requested tag. An empty filter matches every
// record.
func MatchesTags(recordTags, requested []string) bool {
	for _, want := range requested {
		if !slices.Contains(recordTags, want) {
			return false
		}
	}
	return true
}

// Broker is the core reconciliation capability every resource kind
// implements.
type Broker interface {
	Kind() string
	Apply() (*Response, error)
	Get(params GetParams) (*Response, error)
	Describe() (*Response, error)
	Delete() (*Response, error)
	Schema() (*Response, error)
	ExampleManifest() (*Response, error)
}

// Deployable is the optional capability of kinds that can be deployed.
type Deployable interface {
	Deploy() (*Response, error)
	Undeploy() (*Response, error)
}

// Chattable is the optional capability of kinds that hold
// conversations.
type Chattable interface {
	Chat(prompt string) (*Response, error)
}

// LogEmitting is the optional capability of kinds that expose activity
// history.
type LogEmitting interface {
	Logs() (*Response, error)
}

// Factory constructs a broker for one command invocation.
type Factory func(cfg Config, ctx Context, opts Options) (Broker, error)

// Registry maps resource kinds to their broker factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a kind's factory. Later registrations for the same kind
// replace earlier ones.
func (r *Registry) Register(kind string, factory Factory) {
	r.factories[kind] = factory
}

// Kinds returns the registered kinds, sorted.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.factories))
	for kind := range r.factories {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// New constructs a broker for a kind. An unregistered kind fails with a
// validation error before any persistence access.
func (r *Registry) New(kind string, cfg Config, ctx Context, opts Options) (Broker, error) {
	factory, ok := r.factories[kind]
	if !ok {
		return nil, manifest.NewValidationError(kind, "kind",
			"unknown resource kind %q; supported kinds: %s", kind, strings.Join(r.Kinds(), ", "))
	}
	return factory(cfg, ctx, opts)
}
