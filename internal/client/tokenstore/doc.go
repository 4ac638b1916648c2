// Package tokenstore is the single read/write surface for the client's
// authentication state: the access token, the refresh token and the cached
// identity snapshot.
//
// # Slots
//
// State lives in three durable slots (SlotAccess, SlotRefresh, SlotIdentity)
// held by a Backend. Backends are provided for SQLite (default, goose-migrated),
// BBolt, Redis and process memory. Every backend writes a batch of slots in a
// single transaction, so readers never observe a half-written pair.
//
// # Fail closed
//
// Store.Get decodes the slots through a strict codec. A missing slot, an empty
// token or an identity that does not parse yields ErrAbsent (corruption is
// additionally tagged with ErrCorrupt). Callers must treat both the same way:
// there is no usable session.
package tokenstore
