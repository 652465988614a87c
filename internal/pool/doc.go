// Package pool provides admission control for expensive model contexts.
//
// A Pool holds a fixed number of slots. Callers that find every slot taken
// are queued and served strictly in arrival order. The resource for a slot
// is only constructed after the slot is granted, so construction never races
// ahead of the queue. A Lease is released exactly once no matter how many
// times Release is called.
//
// A single Pool is created at process start and passed to every component
// that needs a model context.
package pool
