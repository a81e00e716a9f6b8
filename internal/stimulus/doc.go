// Package stimulus draws stimuli from in-memory pools.
//
// A Pool is either a Sequence (ordered slice) or a Keyed pool (string keys
// in insertion order). Draws without replacement remove the drawn element
// from the pool; draws with replacement and sequential access leave it
// untouched. Every draw reports false instead of a value when the pool is
// empty.
//
// Pools and Selectors are not safe for concurrent use. A trial sharing one
// pool between goroutines must serialize its own draws.
package stimulus
