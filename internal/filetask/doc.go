// Package filetask runs one input file through the synthesis pipeline:
// submit, poll, download, extract, write subtitles, and move the result into
// the output root.
//
// Stages run strictly in order. The first failing stage ends the task as
// skipped and removes its workspace; nothing is retried here. Run never
// returns an error or panics past its boundary. Every result, including skips,
// is reported through Outcome.
package filetask
