// Package events fans scheduler lifecycle events out to subscribers and hooks.
package events
