// Vibecheck is a local-first CLI for reviewing code changes with a locally
// hosted language model.
//
// Each diff hunk is reviewed in its own conversation. The model may call
// repository tools (read a file, find a file, semantic search) before it
// answers with concrete suggested edits. Exit codes are deterministic for
// CI gating and git hooks.
//
// Usage:
//
//	vibecheck review                         # review HEAD against main
//	vibecheck review --diff-file change.patch
//	vibecheck review staged                  # review staged changes
//	vibecheck review commit <sha>            # review a specific commit
//	vibecheck review range origin/main..HEAD # review a revision range
//	vibecheck vectorify                      # build the semantic search index
//	vibecheck serve                          # POST /api/v1/diff
//	vibecheck watch ~/src                    # review new commits as they land
//	vibecheck chat                           # talk to the model
package main
