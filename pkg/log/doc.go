// Package log provides structured logging for the Smarter platform.
//
// It wraps zerolog with a global logger and helpers for attaching the
// common fields used across the codebase (component, kind).
package log
