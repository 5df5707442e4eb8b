// Package auth owns the credential lifecycle of the client.
//
// Gateway logs users in and out, decorates outgoing requests with the bearer
// access token and makes token expiry invisible to callers: a 401 on a
// decorated request parks the request, a single refresh call renews the
// token pair and the parked requests are replayed in arrival order. When the
// refresh fails the session is dropped and every parked request fails with
// the 401 it originally received.
package auth
