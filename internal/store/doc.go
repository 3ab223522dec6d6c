// Package store provides SQLite-backed persistence for catalog generations.
//
// Save replaces the stored catalog with the contents of a committed snapshot
// in one transaction and appends the generation's digest to the history.
// Load returns the latest saved contents for catalog.Restore.
//
// Every record is stored as canonical JSON produced by the entity
// descriptors, so the payload column round-trips every entity field and
// optional fields are explicit nulls.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// All queries order by id so loads are deterministic.
package store
