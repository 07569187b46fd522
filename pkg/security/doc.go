// Package security provides validation, sanitization, and limits for the scheduler.
//
// This package includes:
//   - Create-time validation of jobs per kind
//   - Error message sanitization before persisting delivery failures
//   - Display truncation for job listings
//   - Limits on field sizes, attachment counts and retry attempts
//
// Most users should import the root package github.com/jdziat/simple-message-scheduler
// which re-exports these functions.
package security
