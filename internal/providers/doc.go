// Package providers implements the chat backends that generate review
// output.
//
// Two wire protocols are supported: the native Ollama chat API, which
// streams newline-delimited JSON, and the OpenAI-compatible chat completions
// API used by llama.cpp server and LM Studio, which streams server-sent
// events. Both are stateless over HTTP; the caller owns the conversation and
// sends the whole transcript on every turn.
//
// Opening a stream shares a retry helper with exponential back-off for rate
// limits and server errors. HTTP clients are fields on each backend so that
// tests can point them at local httptest servers.
//
// Use [New] to obtain a Backend from [Options].
package providers
