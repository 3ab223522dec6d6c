// Package codec provides the generic, schema-described value codec used to
// persist catalog records.
//
// This package contains no catalog knowledge. A record is an Object of
// constrained Values; a Schema names each field, its kind and whether it is
// optional. Encoding validates the record against its Schema and writes
// canonical JSON, decoding parses canonical JSON back and validates again, so
// the persisted format is defined once and testable independently of any
// storage engine.
//
// Key design constraints:
//   - NO float values (catalog identity must be exact) - use int64 for numbers
//   - Optional fields are written as explicit null, never omitted
//   - Object keys are ordered by UTF-16 code units (RFC 8785)
//   - Strings are NFC normalized at the encoding boundary
package codec
