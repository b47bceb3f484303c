// Package middleware adapts goIdentity.Engine to net/http.
//
// # Guards
//
//   - [Guard] resolves the user from token pair cookies and rewrites them
//     after a refresh.
//   - [RequireBearer] verifies an id token from the Authorization header.
//   - [RequireSessionCookie] verifies a server-minted session cookie.
//
// Each guard stores verified claims in the request context; read them with
// [ClaimsFromContext]. Session errors become 401, throttled refreshes 429,
// and backend failures 503 so clients keep their cookies.
//
// # What this package must NOT do
//
//   - Parse or sign tokens itself.
//   - Make authorization decisions beyond pass or reject.
package middleware
