// Package watch detects new commits in the git repositories below a
// directory by watching their reflogs.
package watch
