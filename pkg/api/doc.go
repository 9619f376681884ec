// Package api exposes the admin REST surface: configuration management,
// notification triggers and connection diagnostics.
//
// Configuration changes flow through here: an upsert persists the entry,
// then fans a configuration_change notification out to the affected
// tenant's connected clients. Endpoints are protected by a bearer token
// (see pkg/auth); client sync connections are handled elsewhere.
package api
