// Package secret implements the manifest broker for the Secret kind:
// named, encrypted sensitive data owned by the tenant. The spec value
// is write-only; rendered documents always redact it.
package secret

import (
	"github.com/smarter-sh/smarter/pkg/manifest"
)

// Kind is the manifest kind this broker reconciles.
const Kind = "Secret"

// redacted is what rendered documents show in place of a secret value.
const redacted = "*** REDACTED ***"

// Spec is the desired-state payload of a Secret manifest. Value is
// consumed at apply time and never echoed back.
type Spec struct {
	Value          string `json:"value,omitempty"`
	ExpirationDate string `json:"expirationDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// Status is the server-populated state of a Secret.
type Status struct {
	manifest.Status
	ExpiresAt string `json:"expiresAt,omitempty"`
	Expired   bool   `json:"expired"`
}

// Document is the full manifest shape, used for schema rendering.
type Document struct {
	APIVersion string            `json:"apiVersion"`
	Kind       string            `json:"kind"`
	Metadata   manifest.Metadata `json:"metadata"`
	Spec       Spec              `json:"spec"`
	Status     Status            `json:"status,omitempty"`
}

var titles = []string{"name", "description", "expiresAt", "expired"}

const exampleManifest = `apiVersion: smarter.sh/v1
kind: Secret
metadata:
  name: example-secret
  description: An example API credential.
  version: 0.1.0
spec:
  value: the-sensitive-value
  expirationDate: "2027-01-01"
`
