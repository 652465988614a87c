// Package redact masks secrets in hunk text and file contents before they
// are sent to a chat backend.
//
// Detection uses regex heuristics: API keys, JWTs, private key headers,
// AWS credentials, bearer tokens, credentials embedded in connection
// strings, and provider tokens (GitHub, Slack, Hugging Face, Google,
// Anthropic, OpenAI).
//
// A [Policy] can also withhold whole files whose paths match glob patterns;
// their content is replaced by a single [REDACTED] notice.
package redact
