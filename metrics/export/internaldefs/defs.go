package internaldefs

import (
	goIdentity "github.com/MrEthical07/goIdentity"
)

// CounterDef names one engine counter for export.
type CounterDef struct {
	ID   goIdentity.MetricID
	Name string
	Help string
}

// HistogramDef names one engine latency histogram for export.
type HistogramDef struct {
	ID   goIdentity.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter fed by Engine.AuditDropped.
const (
	AuditDroppedName = "goidentity_audit_dropped_total"
	AuditDroppedHelp = "Audit events dropped under dispatcher backpressure."
)

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: goIdentity.MetricVerifySuccess, Name: "goidentity_verify_success_total", Help: "Tokens that passed verification."},
	{ID: goIdentity.MetricVerifyFailure, Name: "goidentity_verify_failure_total", Help: "Tokens rejected for a reason other than expiry."},
	{ID: goIdentity.MetricVerifyExpired, Name: "goidentity_verify_expired_total", Help: "Tokens rejected as expired."},
	{ID: goIdentity.MetricRefreshSuccess, Name: "goidentity_refresh_success_total", Help: "Successful id token refreshes."},
	{ID: goIdentity.MetricRefreshFailure, Name: "goidentity_refresh_failure_total", Help: "Failed id token refreshes."},
	{ID: goIdentity.MetricRefreshRateLimited, Name: "goidentity_refresh_rate_limited_total", Help: "Refreshes denied by the refresh throttle."},
	{ID: goIdentity.MetricSessionEstablished, Name: "goidentity_session_established_total", Help: "Sessions established from a sign-in."},
	{ID: goIdentity.MetricSessionEstablishFailure, Name: "goidentity_session_establish_failure_total", Help: "Failed sign-in exchanges."},
	{ID: goIdentity.MetricExchangeRateLimited, Name: "goidentity_exchange_rate_limited_total", Help: "Code exchanges denied by the exchange throttle."},
	{ID: goIdentity.MetricRevocationRejected, Name: "goidentity_revocation_rejected_total", Help: "Tokens rejected by the revocation check."},
	{ID: goIdentity.MetricKeyFetch, Name: "goidentity_key_fetch_total", Help: "Successful signing key fetches."},
	{ID: goIdentity.MetricKeyFetchFailure, Name: "goidentity_key_fetch_failure_total", Help: "Failed signing key fetches."},
	{ID: goIdentity.MetricCustomTokenMinted, Name: "goidentity_custom_token_minted_total", Help: "Custom tokens signed."},
	{ID: goIdentity.MetricAssertionSigned, Name: "goidentity_assertion_signed_total", Help: "Service account assertions signed on request."},
	{ID: goIdentity.MetricAccessTokenMinted, Name: "goidentity_access_token_minted_total", Help: "Admin access tokens obtained from the token endpoint."},
	{ID: goIdentity.MetricAccessTokenCacheHit, Name: "goidentity_access_token_cache_hit_total", Help: "Admin access tokens served from cache."},
	{ID: goIdentity.MetricSessionCookieCreated, Name: "goidentity_session_cookie_created_total", Help: "Session cookies created."},
}

var HistogramDefs = []HistogramDef{
	{ID: goIdentity.MetricVerifyLatency, Name: "goidentity_verify_latency_seconds", Help: "Token verification latency, key fetches included."},
}

// HistogramUpperBounds are the bucket upper bounds in seconds, +Inf excluded.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed eight-bucket array. Missing
// buckets read as zero and extra ones are ignored.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	copy(out[:], raw)
	return out
}

func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := range raw {
		running += raw[i]
		out[i] = running
	}
	return out
}
