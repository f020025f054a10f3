// Package subtitles converts the timing metadata shipped inside a synthesis
// archive into SRT subtitle files.
//
// The service has emitted several JSON layouts over time, so ParseRecords
// walks an ordered list of accepted schema variants and field aliases. Records
// that cannot be read are skipped individually; a layout that matches no
// variant is reported as ErrUnrecognizedSchema so callers can warn about it
// distinctly from an empty file.
package subtitles
