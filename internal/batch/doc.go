// Package batch runs a set of file requests through the synthesis pipeline
// under a bounded worker pool.
//
// A Runner owns one output root at a time: it creates the root, takes an
// exclusive lock on it, clears stale workspaces, fans requests out to
// workers, and collects every task's Outcome into a Summary. Individual task
// failures never abort a batch; only setup failures (bad input, unusable or
// busy output root) return an error from Run.
//
// Completed batches are recorded in the optional history store and announced
// through the notification service.
package batch
