package server

// Route path constants
const (
	// Account Routes
	RouteRegister = "/auth/register"
	RouteLogin    = "/auth/login"
	RouteLogout   = "/auth/logout"

	// MFA Routes
	RouteMFAVerify      = "/auth/mfa/verify"
	RouteMFASend        = "/auth/mfa/send"
	RouteMFASetup       = "/auth/mfa/setup"
	RouteMFAEnable      = "/auth/mfa/enable"
	RouteMFADisable     = "/auth/mfa/disable"
	RouteMFABackupCodes = "/auth/mfa/backup-codes"

	// Password Routes
	RoutePasswordChange = "/auth/password/change"
	RoutePasswordForgot = "/auth/password/forgot"
	RoutePasswordReset  = "/auth/password/reset"

	// Federated Login Routes
	RouteOAuthStart    = "/auth/oauth/{provider}"
	RouteOAuthCallback = "/auth/oauth/{provider}/callback"

	// Session Routes
	RouteSessions        = "/sessions"
	RouteSessionStats    = "/sessions/stats"
	RouteSessionsRefresh = "/sessions/refresh"
	RouteSessionsAll     = "/sessions/all"
	RouteSession         = "/sessions/{id}"

	RouteHealth = "/healthz"
)
