// Package httpclient is the resilient REST client every HRMS API call goes through.
//
// Each attempt is built from the caller's request, then augmented with the current
// credentials: a bearer access token and, when an organization token is stored, the
// decrypted organization key header. Failed attempts are classified:
//
//   - 401 on the login endpoint is terminal and never triggers a refresh.
//   - Any failure of the refresh endpoint is terminal.
//   - 401 elsewhere goes through the refresh route once per call.
//   - 500, 502, 503, 504 and connection-abort errors are retried with backoff, except on logout.
//   - Everything else is terminal.
//
// Refresh
//   - Single flight per client: only the first expired call performs the refresh; calls
//     arriving meanwhile queue and are replayed in arrival order once it succeeds.
//   - A failed refresh rejects every queued call with one shared *NormalizedError, clears
//     the credentials, calls logout once and redirects to login once.
//   - The refresh call runs detached from the caller's cancellation, bounded by RefreshTimeout.
//
// Retries
//   - Controlled via Builder.WithRetries / WithRetryPolicy; default 3 retries.
//   - Linear backoff by default: delay = RetryDelay * retry, capped at MaxRetryDelay.
//   - Exponential and constant strategies are available.
//   - Total attempts for a transient failure are 1 + MaxRetries.
//
// Errors
//   - Terminal failures are returned as *NormalizedError with the last response, if any.
//   - Nil requests and empty URLs return a validation ClientError without network activity.
//
// Notes
//   - Request bodies are re-sent by rebuilding the http.Request on each attempt.
//   - Interceptor errors are not retried and are surfaced immediately.
package httpclient
