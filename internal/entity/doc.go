// Package entity defines the catalog's entity model.
//
// Every catalog object lives in exactly one of three layers:
//
//   - Logical: the user-facing definition of a table, collection or graph.
//   - Allocation: a partition of a logical entity's data, independent of
//     where it is stored.
//   - Physical: one materialization of an allocation on one adapter.
//
// Entity is a sealed interface; only Logical, Allocation and Physical
// implement it. Allocations and physicals reference their parents by id and
// never own them.
//
// Each variant has an explicit schema descriptor (see Descriptors) that drives
// Marshal and Unmarshal, so the persisted form is fixed in one place and
// optional fields are written as explicit nulls.
package entity
