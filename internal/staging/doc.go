// Package staging manages the per-task workspace directories that hold a
// downloaded archive and its extracted content until final placement.
//
// Workspaces live under a shared root and are named
// {baseName}_task{N}_workspace. Prepare always starts from an empty directory,
// Remove is safe to call more than once, and CleanStale reclaims workspaces left
// behind by interrupted runs.
package staging
