// Package manifest implements the declarative manifest layer of the
// Smarter platform: loading YAML/JSON documents, validating them against
// per-kind schemas, and projecting them to and from persisted records.
//
// A manifest is a Kubernetes-style document:
//
//	apiVersion: smarter.sh/v1
//	kind: SqlConnection
//	metadata:
//	  name: my-db
//	  description: example
//	  version: 0.1.0
//	spec:
//	  ...
//	status:   # server-populated, never read from input
//	  ...
//
// The document wire format is camelCase; persisted records are
// snake_case. The projection table in each broker declares the mapping
// plus which fields are secret references.
package manifest
