package server

func (s *Server) initRoutes() {
	public := s.APIMiddleware()
	private := s.APIMiddleware(s.RequireAuth())

	// ACCOUNT
	s.RegisterRouteHandler("POST "+RouteRegister, ChainMiddleware(s.RegisterHandler(), public...))
	s.RegisterRouteHandler("POST "+RouteLogin, ChainMiddleware(s.LoginHandler(), public...))
	s.RegisterRouteHandler("POST "+RouteLogout, ChainMiddleware(s.LogoutHandler(), private...))

	// MFA
	s.RegisterRouteHandler("POST "+RouteMFAVerify, ChainMiddleware(s.MFAVerifyHandler(), public...))
	s.RegisterRouteHandler("POST "+RouteMFASend, ChainMiddleware(s.MFASendHandler(), public...))
	s.RegisterRouteHandler("POST "+RouteMFASetup, ChainMiddleware(s.MFASetupHandler(), private...))
	s.RegisterRouteHandler("POST "+RouteMFAEnable, ChainMiddleware(s.MFAEnableHandler(), private...))
	s.RegisterRouteHandler("POST "+RouteMFADisable, ChainMiddleware(s.MFADisableHandler(), private...))
	s.RegisterRouteHandler("POST "+RouteMFABackupCodes, ChainMiddleware(s.MFABackupCodesHandler(), private...))

	// PASSWORD
	s.RegisterRouteHandler("POST "+RoutePasswordChange, ChainMiddleware(s.ChangePasswordHandler(), private...))
	s.RegisterRouteHandler("POST "+RoutePasswordForgot, ChainMiddleware(s.ForgotPasswordHandler(), public...))
	s.RegisterRouteHandler("POST "+RoutePasswordReset, ChainMiddleware(s.ResetPasswordHandler(), public...))

	// FEDERATED LOGIN
	s.RegisterRouteHandler("GET "+RouteOAuthStart, ChainMiddleware(s.OAuthStartHandler(), public...))
	s.RegisterRouteHandler("GET "+RouteOAuthCallback, ChainMiddleware(s.OAuthCallbackHandler(), public...))

	// SESSIONS
	s.RegisterRouteHandler("GET "+RouteSessions, ChainMiddleware(s.ListSessionsHandler(), private...))
	s.RegisterRouteHandler("GET "+RouteSessionStats, ChainMiddleware(s.SessionStatsHandler(), private...))
	s.RegisterRouteHandler("POST "+RouteSessionsRefresh, ChainMiddleware(s.RefreshSessionHandler(), private...))
	s.RegisterRouteHandler("DELETE "+RouteSessionsAll, ChainMiddleware(s.LogoutAllHandler(), private...))
	s.RegisterRouteHandler("DELETE "+RouteSessions, ChainMiddleware(s.LogoutOthersHandler(), private...))
	s.RegisterRouteHandler("DELETE "+RouteSession, ChainMiddleware(s.RevokeSessionHandler(), private...))

	s.RegisterRouteHandler("GET "+RouteHealth, ChainMiddleware(s.HealthHandler(), s.RecoverMiddleware))

	// CORS preflight for every API path
	s.RegisterRouteHandler("OPTIONS /", ChainMiddleware(notFound, public...))
}
