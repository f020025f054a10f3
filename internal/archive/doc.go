// Package archive unpacks the result bundles returned by the speech service.
//
// Bundles are tar files, optionally gzip-compressed. ExtractAndRename places
// the content in a task workspace and gives its top-level directory the
// canonical name the rest of the pipeline expects.
package archive
