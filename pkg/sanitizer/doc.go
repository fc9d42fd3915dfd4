// Package sanitizer normalizes guest-supplied contact and free-text fields
// before validation and storage.
//
// All functions are idempotent. Invalid input yields an empty string rather
// than an error; callers decide whether an empty result is acceptable.
package sanitizer
