// Package jsonscan finds complete JSON values inside noisy, growing model
// output without a full parse.
//
// The scanner is a single left-to-right pass with separate [] and {} depth
// counters, an in-string flag and a one-shot escape flag. A value begins at
// the first opening bracket and ends when both depths return to zero. A bare
// object is normalized to a one-element array.
//
// No match is a normal outcome: callers keep appending tokens and scan again.
package jsonscan
