// Package notify translates notification envelopes into concrete connection
// targets and hands them to the transport's send capability.
//
// The dispatcher resolves targets through the connection registry and fans
// sends out concurrently, so one slow or failed send never blocks delivery
// to the remaining targets. A recipient with no current connections is a
// soft condition (logged, not an error): delivery simply completes with zero
// sends. Payload contents are opaque to this package; only the routing
// metadata is interpreted.
package notify
