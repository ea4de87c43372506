// Package api hosts the HTTP server, middleware, and REST handlers for
// operator access. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/harvests to trigger a harvest run, GET /v1/harvests/{run_id}
//     to poll its outcome.
//   - GET /v1/problems and /v1/tags for the catalog read surface.
package api
