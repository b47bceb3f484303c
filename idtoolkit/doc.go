// Package idtoolkit is a thin REST client for the identity service: the
// Identity Toolkit accounts API, the Secure Token refresh endpoint and the
// OAuth token endpoint used for service access tokens.
//
// Every call goes through a transport.Client, so upstream error bodies come
// back as *transport.APIError.
package idtoolkit
