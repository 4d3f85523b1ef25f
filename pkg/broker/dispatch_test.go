package broker

import (
	"net/http"
	"testing"
)

// coreBroker implements only the core capabilities.
type coreBroker struct {
	Base
}

func newCoreBroker(cfg Config, ctx Context, opts Options) (Broker, error) {
	base, err := NewBase("Widget", cfg, ctx, opts)
	if err != nil {
		return nil, err
	}
	return &coreBroker{Base: base}, nil
}

func (b *coreBroker) Kind() string { return "Widget" }
func (b *coreBroker) Apply() (*Response, error) {
	return NewSuccess("Widget", CommandApply, nil, "applied"), nil
}
func (b *coreBroker) Get(params GetParams) (*Response, error) {
	return NewSuccess("Widget", CommandGet, &ListData{Items: []any{}}, "retrieved"), nil
}
func (b *coreBroker) Describe() (*Response, error) {
	return NewSuccess("Widget", CommandDescribe, nil, "described"), nil
}
func (b *coreBroker) Delete() (*Response, error) {
	return NewSuccess("Widget", CommandDelete, nil, "deleted"), nil
}
func (b *coreBroker) Schema() (*Response, error) {
	return NewSuccess("Widget", CommandSchema, nil, "schema"), nil
}
func (b *coreBroker) ExampleManifest() (*Response, error) {
	return NewSuccess("Widget", CommandExampleManifest, nil, "example"), nil
}

// deployableBroker adds the deployment capability.
type deployableBroker struct {
	coreBroker
	deployed bool
}

func (b *deployableBroker) Deploy() (*Response, error) {
	b.deployed = true
	return NewSuccess("Widget", CommandDeploy, nil, "deployed"), nil
}
func (b *deployableBroker) Undeploy() (*Response, error) {
	b.deployed = false
	return NewSuccess("Widget", CommandUndeploy, nil, "undeployed"), nil
}

func TestRegistryUnknownKind(t *testing.T) {
	r := NewRegistry()
	r.Register("Widget", newCoreBroker)

	resp := r.Execute(Config{}, Context{}, Request{Command: CommandGet, Kind: "Gadget"})
	if resp.StatusCode() != http.StatusBadRequest {
		t.Errorf("StatusCode = %d, want 400", resp.StatusCode())
	}

	detail := resp.Data.(map[string]any)["error"].(ErrorDetail)
	if detail.ErrorClass != "ValidationError" {
		t.Errorf("ErrorClass = %q, want ValidationError", detail.ErrorClass)
	}
}

func TestRegistryKindsSorted(t *testing.T) {
	r := NewRegistry()
	r.Register("Widget", newCoreBroker)
	r.Register("Apparatus", newCoreBroker)

	kinds := r.Kinds()
	if len(kinds) != 2 || kinds[0] != "Apparatus" || kinds[1] != "Widget" {
		t.Errorf("Kinds = %v, want [Apparatus Widget]", kinds)
	}
}

func TestDispatchCoreCommands(t *testing.T) {
	r := NewRegistry()
	r.Register("Widget", newCoreBroker)

	for _, command := range []string{
		CommandApply, CommandGet, CommandDescribe, CommandDelete,
		CommandSchema, CommandExampleManifest,
	} {
		resp := r.Execute(Config{}, Context{}, Request{Command: command, Kind: "Widget"})
		if resp.StatusCode() != http.StatusOK {
			t.Errorf("%s: StatusCode = %d, want 200", command, resp.StatusCode())
		}
		if resp.Metadata.Command != command {
			t.Errorf("%s: envelope command = %q", command, resp.Metadata.Command)
		}
	}
}

func TestDispatchOptionalCapabilitiesAbsent(t *testing.T) {
	r := NewRegistry()
	r.Register("Widget", newCoreBroker)

	// A kind without the optional capabilities answers 501, routed by
	// interface probing rather than invoking anything.
	for _, command := range []string{CommandDeploy, CommandUndeploy, CommandChat, CommandLogs} {
		resp := r.Execute(Config{}, Context{}, Request{Command: command, Kind: "Widget"})
		if resp.StatusCode() != http.StatusNotImplemented {
			t.Errorf("%s: StatusCode = %d, want 501", command, resp.StatusCode())
		}
		detail := resp.Data.(map[string]any)["error"].(ErrorDetail)
		if detail.ErrorClass != "BrokerErrorNotImplemented" {
			t.Errorf("%s: ErrorClass = %q", command, detail.ErrorClass)
		}
	}
}

func TestDispatchOptionalCapabilitiesPresent(t *testing.T) {
	r := NewRegistry()
	r.Register("Widget", func(cfg Config, ctx Context, opts Options) (Broker, error) {
		base, err := NewBase("Widget", cfg, ctx, opts)
		if err != nil {
			return nil, err
		}
		return &deployableBroker{coreBroker: coreBroker{Base: base}}, nil
	})

	resp := r.Execute(Config{}, Context{}, Request{Command: CommandDeploy, Kind: "Widget"})
	if resp.StatusCode() != http.StatusOK {
		t.Errorf("deploy: StatusCode = %d, want 200", resp.StatusCode())
	}

	// Chat is still absent on a deployable-only kind.
	resp = r.Execute(Config{}, Context{}, Request{Command: CommandChat, Kind: "Widget"})
	if resp.StatusCode() != http.StatusNotImplemented {
		t.Errorf("chat: StatusCode = %d, want 501", resp.StatusCode())
	}
}

func TestDispatchUnknownCommand(t *testing.T) {
	r := NewRegistry()
	r.Register("Widget", newCoreBroker)

	resp := r.Execute(Config{}, Context{}, Request{Command: "explode", Kind: "Widget"})
	if resp.StatusCode() != http.StatusNotImplemented {
		t.Errorf("StatusCode = %d, want 501", resp.StatusCode())
	}
}

func TestMatchesTags(t *testing.T) {
	tests := []struct {
		name      string
		record    []string
		requested []string
		want      bool
	}{
		{"empty filter matches untagged", nil, nil, true},
		{"empty filter matches tagged", []string{"production"}, nil, true},
		{"single match", []string{"production", "eu-west"}, []string{"production"}, true},
		{"all requested present", []string{"production", "eu-west"}, []string{"eu-west", "production"}, true},
		{"one requested missing", []string{"production"}, []string{"production", "staging"}, false},
		{"untagged record never matches", nil, []string{"production"}, false},
	}
	for _, tt := range tests {
		if got := MatchesTags(tt.record, tt.requested); got != tt.want {
			t.Errorf("%s: MatchesTags(%v, %v) = %v, want %v",
				tt.name, tt.record, tt.requested, got, tt.want)
		}
	}
}

func TestSourceString(t *testing.T) {
	tests := []struct {
		src  Source
		want string
	}{
		{SourceUnresolved, "unresolved"},
		{SourceFromLoader, "loader"},
		{SourceFromRecord, "record"},
	}
	for _, tt := range tests {
		if got := tt.src.String(); got != tt.want {
			t.Errorf("Source(%d).String() = %q, want %q", tt.src, got, tt.want)
		}
	}
}
