// Package history stores a record of every batch run and the outcome of each
// of its tasks in SQLite, so past runs can be reviewed with `voicebatch
// history` after their logs have scrolled away.
package history
