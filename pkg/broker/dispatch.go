package broker

import (
	"time"

	"github.com/smarter-sh/smarter/pkg/metrics"
)

// Command names of the uniform protocol.
const (
	CommandApply           = "apply"
	CommandGet             = "get"
	CommandDescribe        = "describe"
	CommandDelete          = "delete"
	CommandDeploy          = "deploy"
	CommandUndeploy        = "undeploy"
	CommandLogs            = "logs"
	CommandChat            = "chat"
	CommandSchema          = "schema"
	CommandExampleManifest = "example_manifest"
)

// Commands lists every command of the protocol, for routing and help
// output.
var Commands = []string{
	CommandApply,
	CommandGet,
	CommandDescribe,
	CommandDelete,
	CommandDeploy,
	CommandUndeploy,
	CommandLogs,
	CommandChat,
	CommandSchema,
	CommandExampleManifest,
}

// Request is one inbound command, as received from either front-end.
// Manifest carries inline text only; front-ends resolve files and URLs
// on their own side before the request is built.
type Request struct {
	Command    string
	Kind       string
	Manifest   []byte
	Name       string
	AllObjects bool
	Tags       []string
	Prompt     string
}

// Execute runs one command through a fresh broker instance and always
// returns an envelope: every error is classified and wrapped, nothing
// propagates to the transport layer raw.
func (r *Registry) Execute(cfg Config, ctx Context, req Request) *Response {
	start := time.Now()

	b, err := r.New(req.Kind, cfg, ctx, Options{
		Manifest: req.Manifest,
		Name:     req.Name,
	})
	if err != nil {
		metrics.ObserveCommand(req.Kind, req.Command, "error", start)
		return NewErrorResponse(req.Kind, req.Command, err)
	}

	resp, err := dispatch(b, req)
	if err != nil {
		metrics.ObserveCommand(req.Kind, req.Command, "error", start)
		return NewErrorResponse(req.Kind, req.Command, err)
	}

	metrics.ObserveCommand(req.Kind, req.Command, "success", start)
	return resp
}

// dispatch routes a command to the broker, probing for optional
// capabilities instead of invoking and catching NotImplemented.
func dispatch(b Broker, req Request) (*Response, error) {
	switch req.Command {
	case CommandApply:
		return b.Apply()
	case CommandGet:
		return b.Get(GetParams{Name: req.Name, AllObjects: req.AllObjects, Tags: req.Tags})
	case CommandDescribe:
		return b.Describe()
	case CommandDelete:
		return b.Delete()
	case CommandSchema:
		return b.Schema()
	case CommandExampleManifest:
		return b.ExampleManifest()
	case CommandDeploy:
		if d, ok := b.(Deployable); ok {
			return d.Deploy()
		}
		return nil, &NotImplementedError{Kind: b.Kind(), Command: req.Command}
	case CommandUndeploy:
		if d, ok := b.(Deployable); ok {
			return d.Undeploy()
		}
		return nil, &NotImplementedError{Kind: b.Kind(), Command: req.Command}
	case CommandChat:
		if c, ok := b.(Chattable); ok {
			return c.Chat(req.Prompt)
		}
		return nil, &NotImplementedError{Kind: b.Kind(), Command: req.Command}
	case CommandLogs:
		if l, ok := b.(LogEmitting); ok {
			return l.Logs()
		}
		return nil, &NotImplementedError{Kind: b.Kind(), Command: req.Command}
	default:
		return nil, &NotImplementedError{Kind: b.Kind(), Command: req.Command}
	}
}
