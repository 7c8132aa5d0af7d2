package httpclient

import (
	"bytes"
	"encoding/json"
	nethttp "net/http"
	"strconv"

	"github.com/akjtjhklf/fnb-hrms-client/logger"
)

// DefaultMaxPayloadLogBytes caps logged body previews when MaxPayloadLogBytes is unset
const DefaultMaxPayloadLogBytes = 1024

// redactedPayload stands in for auth bodies that cannot be inspected field by field
const redactedPayload = "[REDACTED]"

var payloadFilter = logger.NewSensitiveDataFilter(nil)

// logRequest logs the outgoing request
func (c *client) logRequest(req *nethttp.Request, body []byte, traceID string) {
	logEvent := c.logger.Info().
		Str("direction", "outbound").
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Str("request_id", traceID)

	if len(req.Header) > 0 {
		logEvent.Int("header_count", len(req.Header))
	}
	if len(body) > 0 {
		logEvent.Int("body_size", len(body))
	}
	logEvent.Msg("REST client request")

	if !c.config.LogPayloads {
		return
	}

	preview, truncated := c.payloadPreview(req.URL.Path, body)
	c.logger.Debug().
		Str("direction", "outbound").
		Str("method", req.Method).
		Str("request_id", traceID).
		Interface("headers", payloadFilter.FilterValue("", map[string][]string(req.Header))).
		Int("body_size", len(body)).
		Str("body_truncated", strconv.FormatBool(truncated)).
		Bytes("body_preview", preview).
		Msg("REST client request")
}

// logResponse logs the incoming response
func (c *client) logResponse(resp *Response, path, traceID string) {
	logEvent := c.logger.Info().
		Str("direction", "inbound").
		Int("status", resp.StatusCode).
		Dur("elapsed", resp.Stats.ElapsedTime).
		Int64("call_count", resp.Stats.CallCount).
		Str("request_id", traceID)

	if len(resp.Body) > 0 {
		logEvent.Int("body_size", len(resp.Body))
	}
	logEvent.Msg("REST client response")

	if !c.config.LogPayloads {
		return
	}

	preview, truncated := c.payloadPreview(path, resp.Body)
	c.logger.Debug().
		Str("direction", "inbound").
		Int("status", resp.StatusCode).
		Str("request_id", traceID).
		Interface("headers", payloadFilter.FilterValue("", map[string][]string(resp.Headers))).
		Int("body_size", len(resp.Body)).
		Str("body_truncated", strconv.FormatBool(truncated)).
		Bytes("body_preview", preview).
		Msg("REST client response")
}

// payloadPreview redacts body and caps it at MaxPayloadLogBytes. The cap applies to the
// redacted form so a cut never exposes part of a masked value.
func (c *client) payloadPreview(path string, body []byte) (preview []byte, truncated bool) {
	preview = c.redactPayload(path, body)
	limit := c.config.MaxPayloadLogBytes
	if limit <= 0 {
		limit = DefaultMaxPayloadLogBytes
	}
	if len(preview) > limit {
		return preview[:limit], true
	}
	return preview, false
}

// redactPayload masks sensitive fields of a JSON body. Non-JSON bodies on the login and
// refresh endpoints are replaced entirely; other non-JSON bodies pass through.
func (c *client) redactPayload(path string, body []byte) []byte {
	if len(body) == 0 {
		return body
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil || dec.More() {
		if c.isCredentialPath(path) {
			return []byte(redactedPayload)
		}
		return body
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payloadFilter.FilterValue("", doc)); err != nil {
		return []byte(redactedPayload)
	}
	return bytes.TrimRight(buf.Bytes(), "\n")
}

func (c *client) isCredentialPath(path string) bool {
	return matchesEndpoint(path, c.config.Endpoints.Login) || matchesEndpoint(path, c.config.Endpoints.Refresh)
}
