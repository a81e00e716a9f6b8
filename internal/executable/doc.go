// Package executable defines the runtime a trial script runs against.
//
// A Controller is built once per executable run from an immutable
// SessionContext. It forwards lifecycle signals to the host Executor,
// supplies timestamps, loads resources and exposes the stimulus selector.
// The host decides when an executable runs, persists results and enforces
// authorization; none of that happens here.
package executable
