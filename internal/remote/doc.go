// Package remote is the HTTP JSON client for the recipe API.
//
// Client implements the like endpoints used by the sync engine
// (POST/DELETE/GET /recipes/like) and the profile endpoints
// (GET /api/me, PUT /api/update). Every request carries a bearer token from
// a TokenProvider and an X-Request-ID header.
//
// Failures come back as one of:
//   - ErrNoToken when the provider has nothing to send
//   - *StatusError for any non-2xx response, with status and body
//   - a wrapped transport error (including context deadline)
package remote
