// Package logging assembles structured slog loggers and formatting helpers used
// across voicebatch.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so task code can automatically
// tag log lines with task numbers, stages, and batch ids. A StreamHub buffers
// every published record as a LogEvent so the CLI can follow a running batch.
//
// Prefer these constructors over hand-rolled slog setup to ensure new
// components emit data with the same shape and routing guarantees as the rest
// of the system.
package logging
