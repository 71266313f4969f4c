package flows

import (
	"context"
	"errors"
	"time"

	"github.com/jonmaxmore/Botanical-Audit-Framework-sub006/internal/limiters"
	"github.com/jonmaxmore/Botanical-Audit-Framework-sub006/jwt"
	"github.com/jonmaxmore/Botanical-Audit-Framework-sub006/session"
)

// AuthState is one step of the authentication state machine.
type AuthState int

const (
	StateStart AuthState = iota
	StateLookupPrincipal
	StateCheckLockout
	StateCheckActive
	StateVerifyPassword
	StateCheckPasswordAge
	StateIssueTokens
	StateCreateSession
	StateSuccess
	StateFailed
)

var authStateNames = [...]string{
	StateStart:            "START",
	StateLookupPrincipal:  "LOOKUP_PRINCIPAL",
	StateCheckLockout:     "CHECK_LOCKOUT",
	StateCheckActive:      "CHECK_ACTIVE",
	StateVerifyPassword:   "VERIFY_PASSWORD",
	StateCheckPasswordAge: "CHECK_PASSWORD_AGE",
	StateIssueTokens:      "ISSUE_TOKENS",
	StateCreateSession:    "CREATE_SESSION",
	StateSuccess:          "SUCCESS",
	StateFailed:           "FAILED",
}

func (s AuthState) String() string {
	if s < 0 || int(s) >= len(authStateNames) {
		return "UNKNOWN"
	}
	return authStateNames[s]
}

// FailureReason is the reason code attached to a failed authentication.
type FailureReason string

const (
	ReasonNone                FailureReason = ""
	ReasonUserNotFound        FailureReason = "USER_NOT_FOUND"
	ReasonAccountLocked       FailureReason = "ACCOUNT_LOCKED"
	ReasonAccountInactive     FailureReason = "ACCOUNT_INACTIVE"
	ReasonInvalidPassword     FailureReason = "INVALID_PASSWORD"
	ReasonPasswordExpired     FailureReason = "PASSWORD_EXPIRED"
	ReasonBackendUnavailable  FailureReason = "BACKEND_UNAVAILABLE"
	ReasonTokenIssueFailed    FailureReason = "TOKEN_ISSUE_FAILED"
	ReasonSessionCreateFailed FailureReason = "SESSION_CREATE_FAILED"
)

// PrincipalRecord is the flow-local view of a credential record.
type PrincipalRecord struct {
	ID                string
	Email             string
	Role              string
	Active            bool
	PasswordHash      string
	PasswordChangedAt time.Time
	LastLoginAt       time.Time
	LastLoginIP       string
}

// AuthenticateInput is the caller-supplied part of an authentication attempt.
type AuthenticateInput struct {
	Email     string
	Password  string
	ClientIP  string
	UserAgent string
}

// AuthenticateDeps captures authentication flow dependencies.
type AuthenticateDeps struct {
	Now             func() time.Time
	FindByEmail     func(context.Context, string) (*PrincipalRecord, error)
	IsNotFound      func(error) bool
	LockState       func(context.Context, string) (bool, time.Time, error)
	RecordFailure   func(context.Context, string) (limiters.FailureResult, error)
	ClearFailures   func(context.Context, string) error
	VerifyPassword  func(password, encoded string) (bool, error)
	// DummyHash is verified against when there is no usable account, so an
	// unknown email costs the same hashing work as a wrong password.
	DummyHash       string
	PasswordExpired func(changedAt, now time.Time) bool
	IssueTokens     func(principalID, role string) (jwt.Pair, error)
	CreateSession   func(context.Context, *session.Session) error
}

// AuthenticateResult is the terminal state of one run of the machine.
//
// On failure, FailedAt is the state that rejected the attempt and Reason
// its code. Principal is set once LOOKUP_PRINCIPAL has succeeded.
type AuthenticateResult struct {
	State     AuthState
	FailedAt  AuthState
	Reason    FailureReason
	Err       error
	Principal *PrincipalRecord
	Pair      jwt.Pair

	// Failure accounting, populated by VERIFY_PASSWORD on a mismatch.
	FailureCount int64
	NewlyLocked  bool
	LockedUntil  time.Time

	// ClearErr is set when the failure counter could not be reset after
	// an otherwise successful attempt.
	ClearErr error

	Trace []AuthState
}

// Succeeded reports whether the run ended in SUCCESS.
func (r AuthenticateResult) Succeeded() bool {
	return r.State == StateSuccess
}

var errFlowNotWired = errors.New("authenticate flow dependencies missing")

// RunAuthenticate drives one attempt from START to SUCCESS or FAILED. Each
// state either advances or terminates with a reason code; there is no
// backwards transition.
func RunAuthenticate(ctx context.Context, in AuthenticateInput, deps AuthenticateDeps) AuthenticateResult {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.IsNotFound == nil {
		deps.IsNotFound = func(error) bool { return false }
	}
	if deps.PasswordExpired == nil {
		deps.PasswordExpired = func(time.Time, time.Time) bool { return false }
	}

	res := AuthenticateResult{State: StateStart, Trace: []AuthState{StateStart}}
	if deps.FindByEmail == nil || deps.LockState == nil || deps.RecordFailure == nil ||
		deps.VerifyPassword == nil || deps.IssueTokens == nil || deps.CreateSession == nil {
		return res.fail(StateStart, ReasonBackendUnavailable, errFlowNotWired)
	}

	state := StateLookupPrincipal
	for {
		res.Trace = append(res.Trace, state)

		switch state {
		case StateLookupPrincipal:
			p, err := deps.FindByEmail(ctx, in.Email)
			if err != nil {
				if deps.IsNotFound(err) {
					burnVerify(in.Password, deps)
					return res.fail(state, ReasonUserNotFound, err)
				}
				return res.fail(state, ReasonBackendUnavailable, err)
			}
			if p == nil {
				burnVerify(in.Password, deps)
				return res.fail(state, ReasonUserNotFound, nil)
			}
			res.Principal = p
			state = StateCheckLockout

		case StateCheckLockout:
			locked, until, err := deps.LockState(ctx, res.Principal.ID)
			if err != nil {
				return res.fail(state, ReasonBackendUnavailable, err)
			}
			if locked {
				res.LockedUntil = until
				return res.fail(state, ReasonAccountLocked, nil)
			}
			state = StateCheckActive

		case StateCheckActive:
			if !res.Principal.Active {
				_, _ = deps.VerifyPassword(in.Password, res.Principal.PasswordHash)
				return res.fail(state, ReasonAccountInactive, nil)
			}
			state = StateVerifyPassword

		case StateVerifyPassword:
			ok, verifyErr := deps.VerifyPassword(in.Password, res.Principal.PasswordHash)
			if verifyErr != nil || !ok {
				fr, err := deps.RecordFailure(ctx, res.Principal.ID)
				if err != nil {
					return res.fail(state, ReasonInvalidPassword, errors.Join(verifyErr, err))
				}
				res.FailureCount = fr.Count
				res.NewlyLocked = fr.NewlyLocked
				if fr.Locked {
					res.LockedUntil = fr.LockedUntil
				}
				return res.fail(state, ReasonInvalidPassword, verifyErr)
			}
			state = StateCheckPasswordAge

		case StateCheckPasswordAge:
			if deps.PasswordExpired(res.Principal.PasswordChangedAt, deps.Now()) {
				return res.fail(state, ReasonPasswordExpired, nil)
			}
			state = StateIssueTokens

		case StateIssueTokens:
			pair, err := deps.IssueTokens(res.Principal.ID, res.Principal.Role)
			if err != nil {
				return res.fail(state, ReasonTokenIssueFailed, err)
			}
			res.Pair = pair
			state = StateCreateSession

		case StateCreateSession:
			err := deps.CreateSession(ctx, &session.Session{
				SessionID:   res.Pair.SessionID,
				PrincipalID: res.Principal.ID,
				Role:        res.Principal.Role,
				ClientIP:    in.ClientIP,
				UserAgent:   in.UserAgent,
			})
			if err != nil {
				res.Pair = jwt.Pair{}
				return res.fail(state, ReasonSessionCreateFailed, err)
			}
			state = StateSuccess

		case StateSuccess:
			if deps.ClearFailures != nil {
				res.ClearErr = deps.ClearFailures(ctx, res.Principal.ID)
			}
			res.State = StateSuccess
			return res

		default:
			return res.fail(state, ReasonBackendUnavailable, errFlowNotWired)
		}
	}
}

// burnVerify runs a verification whose result is discarded.
func burnVerify(password string, deps AuthenticateDeps) {
	if deps.DummyHash != "" {
		_, _ = deps.VerifyPassword(password, deps.DummyHash)
	}
}

func (r AuthenticateResult) fail(at AuthState, reason FailureReason, err error) AuthenticateResult {
	r.State = StateFailed
	r.FailedAt = at
	r.Reason = reason
	r.Err = err
	r.Trace = append(r.Trace, StateFailed)
	return r
}
