// Package middleware provides observability middleware for the HTTP
// handlers served alongside a client, such as the debug endpoints.
//
// # OpenTelemetry Middleware
//
// OpenTelemetry starts a server span per request, named after the chi
// route pattern when one matched:
//
//	r := chi.NewRouter()
//	r.Use(middleware.OpenTelemetry(
//	    middleware.WithTracerName("bar-debug"),
//	    middleware.WithRequestFilter(func(r *http.Request) bool {
//	        return r.URL.Path != "/healthz"
//	    }),
//	))
//
// The span is stored in the request context, so handlers reach it with
// trace.SpanFromContext(r.Context()).
//
// # Prometheus Metrics
//
// Prometheus counts requests and observes their duration:
//   - bar_http_requests_total: requests by route and status class
//   - bar_http_request_duration_seconds: duration histogram by route
//
//	reg := prometheus.NewRegistry()
//	r.Use(middleware.Prometheus(middleware.WithRegistry(reg)))
package middleware
