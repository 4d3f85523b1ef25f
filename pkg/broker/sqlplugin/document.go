// Package sqlplugin implements the manifest broker for the Plugin kind
// with a SQL data source: a chatbot extension that runs a parameterized
// query through a named SqlConnection when its selector matches.
package sqlplugin

import (
	"github.com/smarter-sh/smarter/pkg/manifest"
)

// Kind is the manifest kind this broker reconciles.
const Kind = "SqlPlugin"

// PromptSpec configures the prompt the plugin contributes.
type PromptSpec struct {
	SystemRole  string  `json:"systemRole" validate:"required"`
	Model       string  `json:"model,omitempty"`
	Temperature float64 `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	MaxTokens   int     `json:"maxTokens,omitempty" validate:"omitempty,gt=0"`
}

// SelectorSpec decides when the plugin activates.
type SelectorSpec struct {
	Directive   string   `json:"directive,omitempty"`
	SearchTerms []string `json:"searchTerms,omitempty"`
}

// DataSpec binds the plugin to a SqlConnection and the query it runs.
type DataSpec struct {
	Description string            `json:"description,omitempty"`
	Connection  string            `json:"connection" validate:"required"`
	SqlQuery    string            `json:"sqlQuery" validate:"required"`
	Parameters  map[string]string `json:"parameters,omitempty"`
}

// Spec is the desired-state payload of a SqlPlugin manifest.
type Spec struct {
	Prompt   PromptSpec   `json:"prompt" validate:"required"`
	Selector SelectorSpec `json:"selector" validate:"required"`
	Data     DataSpec     `json:"data" validate:"required"`
}

// Status is the server-populated state of a SqlPlugin.
type Status struct {
	manifest.Status
	Class string `json:"class"`
}

// Document is the full manifest shape, used for schema rendering.
type Document struct {
	APIVersion string            `json:"apiVersion"`
	Kind       string            `json:"kind"`
	Metadata   manifest.Metadata `json:"metadata"`
	Spec       Spec              `json:"spec"`
	Status     Status            `json:"status,omitempty"`
}

var titles = []string{"name", "model", "connection", "directive"}

const exampleManifest = `apiVersion: smarter.sh/v1
kind: SqlPlugin
metadata:
  name: example-sql-plugin
  description: An example plugin answering order-status questions from the sales database.
  version: 0.1.0
spec:
  prompt:
    systemRole: You are a helpful assistant with access to order records.
    model: gpt-4
    temperature: 0.5
    maxTokens: 2048
  selector:
    directive: Search the conversation for questions about order status.
    searchTerms:
      - order
      - shipment
  data:
    description: Order status lookup.
    connection: example-sql-connection
    sqlQuery: SELECT status FROM orders WHERE order_id = {order_id}
    parameters:
      order_id: the customer's order number
`
