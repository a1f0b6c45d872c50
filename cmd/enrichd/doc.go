// Package main hosts the enrichment service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes health, metrics, and the two
//     enrichment endpoints. POST /v1/enrich renders a page in a headless
//     browser and returns the extracted social/service links; POST
//     /v1/resolve turns a social handle into a profile.
//   - Fetch pipeline: internal/engine orchestrates one attempt per retry
//     budget slot: synthesize a browser fingerprint, open a Chromedp
//     session, walk the navigation cascade, settle dynamic content, then
//     run anti-bot inspection and link extraction over the rendered DOM.
//     Session parallelism is bounded by a semaphore inside the browser
//     factory.
//   - Profile resolution: internal/resolver tries mirror instances first
//     (round-robin or random over a cooldown pool, via the Colly-based
//     static fetcher) and falls back to a browser render of the primary
//     site, or the other way around when prefer_primary is set.
//   - Persistence & fanout: fetch outcomes and resolved profiles are
//     optionally written to Postgres, rendered HTML snapshots to GCS, and
//     a compact Pub/Sub event is published when a topic is configured.
//     All three are skipped when unconfigured.
//   - Configuration & plumbing: Viper populates config from env/files
//     under the ENRICH prefix; zap provides structured logging;
//     Prometheus metrics are exported via the metrics middleware and the
//     /metrics handler. The service is stateless across requests,
//     suitable for Cloud Run scale-out.
//
// Operational notes:
//   - Concurrency model: each request runs its own browser session;
//     browser.max_parallel caps concurrent Chrome tabs. Shutdown is
//     coordinated via context cancellation from main.
//   - Mirror etiquette: failed mirror instances go on cooldown (floor 60s)
//     and at most mirrors.max_per_request instances are tried per
//     resolution.
//   - Observability: zap logs carry URLs and handles at key transitions;
//     Prometheus counters/histograms track fetches, anti-bot detections,
//     extracted links, resolutions, and mirror failures.
//
// Quick checklist:
//   - Configure env vars: ENRICH_SERVER_PORT, ENRICH_BROWSER_MAX_PARALLEL,
//     ENRICH_FETCH_TIMEOUT_SECONDS, ENRICH_MIRRORS_INSTANCES, storage
//     (ENRICH_STORAGE_*), pubsub, and the database DSN when persistence
//     beyond the response body is required.
//   - Run locally: go run ./cmd/enrichd -config config.yaml (or rely
//     solely on env overrides).
//   - Cloud Run: container listens on the configured port, remains
//     stateless across requests, and shuts down cleanly on SIGTERM.
package main
