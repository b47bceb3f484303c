// Package rate provides Redis-backed fixed-window counters that throttle
// token refreshes and authorization-code exchanges.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefixes:
//   - gi:rr: refresh per refresh-token hash
//   - gi:rx: code exchange per client IP
//
// # What this package must NOT do
//
//   - Store raw refresh tokens in Redis keys.
//   - Be imported outside the goIdentity module.
package rate
