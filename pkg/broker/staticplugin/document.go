// Package staticplugin implements the manifest broker for the Plugin
// kind with a static data source: a chatbot extension that returns a
// fixed payload when its selector matches.
package staticplugin

import (
	"github.com/smarter-sh/smarter/pkg/manifest"
)

// Kind is the manifest kind this broker reconciles.
const Kind = "StaticPlugin"

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

// DataSpec is the static payload returned to the chatbot.
type DataSpec struct {
	Description string            `json:"description,omitempty"`
	StaticData  map[string]string `json:"staticData" validate:"required"`
}

// Spec is the desired-state payload of a StaticPlugin manifest.
type Spec struct {
	Prompt   PromptSpec   `json:"prompt" validate:"required"`
	Selector SelectorSpec `json:"selector" validate:"required"`
	Data     DataSpec     `json:"data" validate:"required"`
}

// Status is the server-populated state of a StaticPlugin.
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

var titles = []string{"name", "model", "directive", "searchTerms"}

const exampleManifest = `apiVersion: smarter.sh/v1
kind: StaticPlugin
metadata:
  name: example-static-plugin
  description: An example plugin returning fixed company information.
  version: 0.1.0
spec:
  prompt:
    systemRole: You are a helpful assistant with expert knowledge of the company.
    model: gpt-4
    temperature: 0.5
    maxTokens: 2048
  selector:
    directive: Search the conversation for company questions.
    searchTerms:
      - company
      - about
  data:
    description: Basic company facts.
    staticData:
      founded: "2023"
      headquarters: Portland, Oregon
`
