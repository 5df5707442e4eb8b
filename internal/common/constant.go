package common

// AuthorizationHeaderName carries the bearer credential on outbound requests.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix precedes the access token in the Authorization header.
const BearerPrefix = "Bearer "

// HTTP routes shared by the client and the reference server.
const (
	RouteHealth       = "/health"
	RouteLogin        = "/auth/login"
	RouteRegister     = "/auth/register"
	RouteRefreshToken = "/auth/refresh-token"
	RouteNotesSync    = "/notes/sync"
)
