// Package storage provides the persisted record store for the Smarter
// platform, backed by BoltDB.
//
// Records are scoped by account: name lookups always filter on
// (account, name), which is the only stable identity a manifest and its
// persisted record share.
package storage
