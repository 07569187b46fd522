// Package core provides the fundamental types and interfaces for the scheduler.
//
// This package contains:
//   - the Job data model with GORM annotations and its Payload variants
//   - the Storage interface defining the persistence contract
//   - the transport sender interfaces invoked at fire time
//   - Event types for lifecycle monitoring
//   - Error types for validation, lookup, transport and persistence failures
//
// Most users should import the root package github.com/jdziat/simple-message-scheduler
// instead of this package directly.
package core
