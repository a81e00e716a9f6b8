// Package resource resolves resource descriptors to URLs and fetches their
// content for running trials.
//
// Project-scoped descriptors resolve to the host's resource endpoint under
// the session's run mode and carry the session token; external descriptors
// resolve to the URL they name and never carry the token. Every fetch is a
// single GET with no retry. A failed request surfaces the server's payload
// unmodified in a *FetchError.
//
// Stopping or failing a trial does not abort fetches in flight: only the
// context passed to Fetch cancels a request, and a Future always settles.
package resource
