// Package dispatch keeps the in-memory set of armed timers, one per job.
//
// The registry knows nothing about storage or transports: it maps a job id
// to a timer and a callback. Replacing or removing an entry guarantees the
// old callback never runs, even when time.Timer.Stop loses the race with an
// expiring timer.
package dispatch
