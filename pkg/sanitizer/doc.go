// Package sanitizer normalizes free-text and identifier input before
// validation and storage.
//
// All functions are idempotent: applying them multiple times produces the same
// result. Invalid input degrades to empty values rather than errors.
//
// Normalization includes:
//   - Text: collapse runs of whitespace into one space and trim the ends; case is preserved
//   - Identifiers: trim and lowercase hex ids
//   - Slices: remove duplicates and empty values after normalization, keeping first-seen order
package sanitizer
