// Package gitctx turns git history and raw patch text into review hunks.
//
// Diffs come from git (unstaged, staged, a commit, a revision range, or the
// difference between two branches with optional commit offsets) or from
// unified diff text supplied directly. [SplitPatch] parses a multi-file
// diff into per-file patches whose [Hunk] values are the unit of work for
// review; [ParseHunks] does the same for the hunks of a single file. Results
// can be filtered by include/exclude glob patterns and truncated to a maximum
// byte size.
package gitctx
