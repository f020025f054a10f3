// Package minimax wraps the asynchronous text-to-speech endpoints of the
// MiniMax API: job submission, status queries, file metadata lookup, text
// uploads, and streamed artifact downloads.
//
// The client performs single requests only. Retry and polling policy belong to
// the callers in internal/remotejob.
package minimax
