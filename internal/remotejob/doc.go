// Package remotejob drives one asynchronous synthesis job through the remote
// service: submitting the text, polling the job until it reaches a terminal
// status, and downloading the resulting archive into a workspace.
//
// Each stage is a small type wrapping a narrow view of the API client so tests
// can substitute fakes. Failures are tagged with the sentinels from
// internal/services so callers can classify them with errors.Is.
package remotejob
