// Package executor runs module queues on the host. It owns session
// lifecycle: each executable gets a controller whose lifecycle calls land
// on a per-executable handle, which records events, moves the session
// through its statuses and decides whether the queue advances.
package executor
