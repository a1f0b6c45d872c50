// Package api hosts the HTTP server, middleware, and REST handlers for
// operator access. Notable routes:
//   - GET /healthz and /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/enrich for browser-rendered fetch-and-extract.
//   - POST /v1/resolve for social profile resolution.
package api
