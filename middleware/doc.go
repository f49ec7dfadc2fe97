// Package middleware adapts linkauth.Engine to net/http.
//
// # Handlers
//
//   - [RequestInfo] copies the User-Agent and client address into the request
//     context so sessions issued further down record them.
//   - [Guard] requires a bearer token that passes Engine.Authorize and stores
//     the resulting Principal and token in the request context.
//   - [Optional] behaves like Guard when a token is present and lets
//     anonymous requests through.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. The liveness
// decision, including the activity refresh, belongs to Engine.Authorize.
//
// # What this package must NOT do
//
//   - Parse or create tokens directly.
//   - Access the session or user store.
package middleware
