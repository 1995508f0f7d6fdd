package http

import (
	"crypto/tls"
	"encoding/json"
	"net/http"
	"net/http/httptrace"
	"time"

	"github.com/tidwall/gjson"
)

// Response is a fully-read response from the target.
type Response struct {
	StatusCode int
	Status     string
	Headers    http.Header
	Timing     TimingInfo
	body       []byte
}

// Body returns the raw response body.
func (r *Response) Body() []byte {
	return r.body
}

// IsSuccess reports whether the status is in [200,300).
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// JSON looks up a gjson path in the body, e.g. "order.id" or "vendors.#".
func (r *Response) JSON(path string) gjson.Result {
	return gjson.GetBytes(r.body, path)
}

// Decode unmarshals the body into v.
func (r *Response) Decode(v interface{}) error {
	return json.Unmarshal(r.body, v)
}

// Duration returns the end-to-end time of the call.
func (r *Response) Duration() time.Duration {
	return r.Timing.TotalTime
}

// TimingInfo breaks one call down into connection phases.
type TimingInfo struct {
	StartTime           time.Time
	DNSLookupTime       time.Duration
	TCPConnectTime      time.Duration
	TLSHandshakeTime    time.Duration
	TimeToFirstByte     time.Duration
	ContentTransferTime time.Duration
	TotalTime           time.Duration
}

// trace returns an httptrace hook that fills t. Phases that do not occur
// on a reused connection stay zero.
func (t *TimingInfo) trace() *httptrace.ClientTrace {
	var dnsStart, connectStart, tlsStart time.Time
	lastPhaseEnd := t.StartTime

	return &httptrace.ClientTrace{
		DNSStart: func(httptrace.DNSStartInfo) {
			dnsStart = time.Now()
		},
		DNSDone: func(httptrace.DNSDoneInfo) {
			lastPhaseEnd = time.Now()
			t.DNSLookupTime = lastPhaseEnd.Sub(dnsStart)
		},
		ConnectStart: func(string, string) {
			connectStart = time.Now()
		},
		ConnectDone: func(_, _ string, err error) {
			if err == nil && !connectStart.IsZero() {
				lastPhaseEnd = time.Now()
				t.TCPConnectTime = lastPhaseEnd.Sub(connectStart)
			}
		},
		TLSHandshakeStart: func() {
			tlsStart = time.Now()
		},
		TLSHandshakeDone: func(_ tls.ConnectionState, err error) {
			if err == nil && !tlsStart.IsZero() {
				lastPhaseEnd = time.Now()
				t.TLSHandshakeTime = lastPhaseEnd.Sub(tlsStart)
			}
		},
		GotFirstResponseByte: func() {
			t.TimeToFirstByte = time.Since(lastPhaseEnd)
		},
	}
}
