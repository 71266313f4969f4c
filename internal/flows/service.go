package flows

import "context"

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Validate.VerifyAccess != nil
}

func (s Service) Authenticate(ctx context.Context, in AuthenticateInput) AuthenticateResult {
	return RunAuthenticate(ctx, in, s.deps.Authenticate)
}

func (s Service) Refresh(ctx context.Context, refreshToken, clientIP, userAgent string) RefreshResult {
	return RunRefresh(ctx, refreshToken, clientIP, userAgent, s.deps.Refresh)
}

func (s Service) Validate(ctx context.Context, tokenStr string) ValidateResult {
	return RunValidate(ctx, tokenStr, s.deps.Validate)
}

func (s Service) Logout(ctx context.Context, sessionID string) error {
	return RunLogout(ctx, sessionID, s.deps.Logout)
}

func (s Service) LogoutAll(ctx context.Context, principalID string) (int, error) {
	return RunLogoutAll(ctx, principalID, s.deps.Logout)
}

func (s Service) ChangePassword(ctx context.Context, in PasswordChangeInput) PasswordChangeResult {
	return RunPasswordChange(ctx, in, s.deps.PasswordChange)
}
