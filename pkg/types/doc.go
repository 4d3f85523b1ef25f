// Package types defines the persisted record types shared across the
// Smarter platform: accounts, users, secrets and the provisionable AI
// resources (SQL connections, plugins, chatbots).
//
// Record field names are snake_case; the manifest wire format is
// camelCase. The manifest projection layer converts between the two.
package types
