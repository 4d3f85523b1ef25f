package broker

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/smarter-sh/smarter/pkg/manifest"
)

// ResponseMetadata carries command routing information in the envelope.
type ResponseMetadata struct {
	Command string `json:"command"`
	Count   *int   `json:"count,omitempty"`
}

// ErrorDetail is the error payload of a failed command, placed under
// data.error in the envelope.
type ErrorDetail struct {
	ErrorClass  string `json:"errorClass"`
	Description string `json:"description"`
	StackTrace  string `json:"stackTrace,omitempty"`
	Status      int    `json:"status"`
}

// Response is the uniform envelope every broker command returns, to
// both the CLI and REST front-ends.
type Response struct {
	Data     any              `json:"data"`
	Message  string           `json:"message,omitempty"`
	API      string           `json:"api"`
	Thing    string           `json:"thing"`
	Metadata ResponseMetadata `json:"metadata"`

	status int
}

// StatusCode returns the HTTP-equivalent status of the response.
func (r *Response) StatusCode() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

// WithStatus overrides the HTTP-equivalent status.
func (r *Response) WithStatus(status int) *Response {
	r.status = status
	return r
}

// WithCount attaches an item count to the envelope metadata.
func (r *Response) WithCount(count int) *Response {
	r.Metadata.Count = &count
	return r
}

// ListData is the payload shape of get responses: matched documents
// plus the field titles used for tabular rendering.
type ListData struct {
	Count  int      `json:"count"`
	Items  []any    `json:"items"`
	Titles []string `json:"titles"`
}

// NewSuccess builds a success envelope for a command.
func NewSuccess(kind, command string, data any, message string) *Response {
	return &Response{
		Data:    data,
		Message: message,
		API:     manifest.APIVersion,
		Thing:   kind,
		Metadata: ResponseMetadata{
			Command: command,
		},
		status: http.StatusOK,
	}
}

// SuccessMessage renders the affirmative past-tense message for a
// command, e.g. "SqlConnection my-db applied successfully".
func SuccessMessage(kind, name, command string) string {
	if name == "" {
		return fmt.Sprintf("%s %s successfully", kind, pastTense(command))
	}
	return fmt.Sprintf("%s %s %s successfully", kind, name, pastTense(command))
}

func pastTense(command string) string {
	switch command {
	case CommandApply:
		return "applied"
	case CommandGet:
		return "retrieved"
	case CommandDescribe:
		return "described"
	case CommandDelete:
		return "deleted"
	case CommandDeploy:
		return "deployed"
	case CommandUndeploy:
		return "undeployed"
	case CommandLogs:
		return "logs retrieved"
	case CommandChat:
		return "chat completed"
	case CommandSchema:
		return "schema rendered"
	case CommandExampleManifest:
		return "example manifest rendered"
	default:
		return command
	}
}

// NewErrorResponse classifies an error into the envelope's error
// variant. Validation and loader errors pass through verbatim;
// everything else carries its class name and, for internal failures,
// a stack trace.
func NewErrorResponse(kind, command string, err error) *Response {
	detail := classify(err)
	return &Response{
		Data:    map[string]any{"error": detail},
		Message: detail.Description,
		API:     manifest.APIVersion,
		Thing:   kind,
		Metadata: ResponseMetadata{
			Command: command,
		},
		status: detail.Status,
	}
}

func classify(err error) ErrorDetail {
	var (
		validationErr     *manifest.ValidationError
		loaderErr         *manifest.LoaderError
		notReadyErr       *NotReadyError
		notFoundErr       *NotFoundError
		notImplementedErr *NotImplementedError
		permissionErr     *PermissionError
		brokerErr         *Error
	)

	switch {
	case errors.As(err, &validationErr):
		return ErrorDetail{
			ErrorClass:  "ValidationError",
			Description: validationErr.Error(),
			Status:      http.StatusBadRequest,
		}
	case errors.As(err, &loaderErr):
		return ErrorDetail{
			ErrorClass:  "LoaderError",
			Description: loaderErr.Error(),
			Status:      http.StatusBadRequest,
		}
	case errors.As(err, &notFoundErr):
		return ErrorDetail{
			ErrorClass:  "BrokerErrorNotFound",
			Description: notFoundErr.Error(),
			Status:      http.StatusNotFound,
		}
	case errors.As(err, &notReadyErr):
		return ErrorDetail{
			ErrorClass:  "BrokerErrorNotReady",
			Description: notReadyErr.Error(),
			Status:      http.StatusBadRequest,
		}
	case errors.As(err, &notImplementedErr):
		return ErrorDetail{
			ErrorClass:  "BrokerErrorNotImplemented",
			Description: notImplementedErr.Error(),
			Status:      http.StatusNotImplemented,
		}
	case errors.As(err, &permissionErr):
		return ErrorDetail{
			ErrorClass:  "BrokerErrorPermission",
			Description: permissionErr.Error(),
			Status:      http.StatusForbidden,
		}
	case errors.As(err, &brokerErr):
		return ErrorDetail{
			ErrorClass:  "BrokerError",
			Description: brokerErr.Error(),
			StackTrace:  brokerErr.Stack,
			Status:      http.StatusInternalServerError,
		}
	default:
		return ErrorDetail{
			ErrorClass:  "BrokerError",
			Description: err.Error(),
			Status:      http.StatusInternalServerError,
		}
	}
}
