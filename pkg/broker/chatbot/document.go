// Package chatbot implements the manifest broker for the Chatbot kind:
// a hosted chat application with its own deployment lifecycle. Chatbot
// is the only kind carrying the deploy, undeploy, chat and logs
// capabilities.
package chatbot

import (
	"github.com/smarter-sh/smarter/pkg/manifest"
)

// Kind is the manifest kind this broker reconciles.
const Kind = "Chatbot"

// ConfigSpec is the chat application's presentation and model settings.
type ConfigSpec struct {
	AppName           string   `json:"appName,omitempty"`
	AppAssistant      string   `json:"appAssistant,omitempty"`
	AppWelcomeMessage string   `json:"appWelcomeMessage,omitempty"`
	AppExamplePrompts []string `json:"appExamplePrompts,omitempty"`

	DefaultModel       string  `json:"defaultModel,omitempty"`
	DefaultTemperature float64 `json:"defaultTemperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	DefaultMaxTokens   int     `json:"defaultMaxTokens,omitempty" validate:"omitempty,gt=0"`

	Subdomain    string `json:"subdomain,omitempty" validate:"omitempty,hostname_rfc1123"`
	CustomDomain string `json:"customDomain,omitempty" validate:"omitempty,fqdn"`
}

// Spec is the desired-state payload of a Chatbot manifest. Plugins
// reference Plugin resources by name within the same account.
type Spec struct {
	Config  ConfigSpec `json:"config" validate:"required"`
	Plugins []string   `json:"plugins,omitempty"`
}

// Status is the server-populated state of a Chatbot.
type Status struct {
	manifest.Status
	DeploymentStatus string `json:"deploymentStatus"`
	URL              string `json:"url,omitempty"`
	DeployedAt       string `json:"deployedAt,omitempty"`
}

// Document is the full manifest shape, used for schema rendering.
type Document struct {
	APIVersion string            `json:"apiVersion"`
	Kind       string            `json:"kind"`
	Metadata   manifest.Metadata `json:"metadata"`
	Spec       Spec              `json:"spec"`
	Status     Status            `json:"status,omitempty"`
}

var titles = []string{"name", "defaultModel", "subdomain", "deploymentStatus", "url"}

// Model defaults applied when a manifest leaves tuning unset.
const (
	defaultModel       = "gpt-4"
	defaultTemperature = 0.5
	defaultMaxTokens   = 2048
)

// deployDomain is the apex under which deployed chatbots are served:
// https://<subdomain>.<account-number>.<deployDomain>
const deployDomain = "api.smarter.sh"

const exampleManifest = `apiVersion: smarter.sh/v1
kind: Chatbot
metadata:
  name: example-chatbot
  description: An example customer-facing chatbot.
  version: 0.1.0
spec:
  config:
    appName: Example Support Bot
    appAssistant: Sally
    appWelcomeMessage: Welcome! How can I help you today?
    appExamplePrompts:
      - What are your hours?
      - Where is my order?
    defaultModel: gpt-4
    defaultTemperature: 0.5
    defaultMaxTokens: 2048
    subdomain: support
  plugins:
    - example-static-plugin
`
