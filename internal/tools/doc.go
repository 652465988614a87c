// Package tools is the catalog of host operations a model may call while
// reviewing a hunk.
//
// Operations are plain values registered through Providers; nothing is
// discovered by reflection. Invoke resolves a name, fills declared parameters
// from the request with explicit per-kind coercion and runs the handler.
// Every failure is returned as an *Error so the caller can fold it back into
// the conversation as text.
package tools
