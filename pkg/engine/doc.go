// Package engine turns armed timers into deliveries.
//
// When a timer fires the engine loads the job, delivers it through the
// transport for its kind under a per-kind timeout, and hands the outcome to
// the Reconciler, which records it with a compare-and-set status write.
// Every fire runs in its own goroutine behind a recover, so one failing or
// panicking delivery cannot affect any other job.
package engine
