// Package service is the scheduling API used by the HTTP surface and the CLI.
//
// It persists new jobs, arms their timers, cancels them, and runs periodic
// housekeeping on a cron: a sweep that re-arms pending jobs missing a timer,
// and a purge of finished jobs past the retention window.
package service
