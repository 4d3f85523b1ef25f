// Package broker implements the manifest reconciliation engine: the
// declarative-apply protocol that parses manifests into validated
// documents, reconciles them against persisted records with
// create-or-update semantics, and wraps every command in a uniform
// success/error envelope consumed identically by the CLI and REST API.
//
// Every resource kind implements the core Broker interface (apply, get,
// describe, delete, schema, example manifest). Kinds that support more
// opt into capability interfaces (Deployable, Chattable, LogEmitting);
// the dispatcher probes for a capability and renders a NotImplemented
// envelope when a kind lacks it.
package broker
