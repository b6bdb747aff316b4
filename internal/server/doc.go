// Package server provides HTTP routing, middleware, and the local status endpoint.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # Status Endpoint
//
// When an upload runs with --serve, [NewStatusRouter] exposes:
//   - GET /status: in-flight keys, completed keys and queue counters as JSON
//   - GET /metrics: Prometheus metrics, when a registry is supplied
//   - GET /healthz: liveness
//
// [Serve] runs the server until its context is cancelled and then shuts down gracefully.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
