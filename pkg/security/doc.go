// Package security implements encryption for Secret records.
//
// Secrets are sealed with AES-256-GCM under a platform key. Plaintext
// values exist only in memory between manifest load and encryption;
// nothing downstream of this package ever sees them again.
package security
