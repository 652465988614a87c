// Package review runs LLM code review over diff hunks.
//
// The [Orchestrator] holds one conversation per hunk on a backend leased
// from a shared pool. Model output is scanned as it streams; each complete
// JSON value is either a tool call, which is dispatched and its result
// folded back into the conversation, or a review [Candidate], which is
// yielded immediately. A backend failure ends only the hunk it hit.
//
// The [Engine] sits on top: it collects hunks from a patch source, serves
// cached hunks, splits the rest into chunks reviewed concurrently, decodes
// candidates into [Comment] values and assembles a [Report].
//
// Rules files (YAML or JSON) add focus areas, required checks and free-form
// style guidance to the prompt, and can exclude paths from review.
package review
