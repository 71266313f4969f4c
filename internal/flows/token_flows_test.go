package flows

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonmaxmore/Botanical-Audit-Framework-sub006/jwt"
	"github.com/jonmaxmore/Botanical-Audit-Framework-sub006/session"
)

var errNoSession = errors.New("no session")

type fakeTokens struct {
	claims     *jwt.Claims
	verifyErr  error
	sess       *session.Session
	getErr     error
	touchErr   error
	touched    int
	issueCalls int
}

func newFakeTokens() *fakeTokens {
	return &fakeTokens{
		claims: &jwt.Claims{PrincipalID: "p1", Role: "farmer", SessionID: "s1"},
		sess:   &session.Session{SessionID: "s1", PrincipalID: "p1", Role: "inspector", Active: true},
	}
}

func (f *fakeTokens) getSession(context.Context, string) (*session.Session, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.sess, nil
}

func (f *fakeTokens) validateDeps() ValidateDeps {
	return ValidateDeps{
		VerifyAccess: func(string) (*jwt.Claims, error) { return f.claims, f.verifyErr },
		GetSession:   f.getSession,
		NotFound:     errNoSession,
	}
}

func (f *fakeTokens) refreshDeps() RefreshDeps {
	return RefreshDeps{
		VerifyRefresh: func(string) (*jwt.Claims, error) { return f.claims, f.verifyErr },
		GetSession:    f.getSession,
		TouchSession: func(_ context.Context, _ string, ip, _ string) (*session.Session, error) {
			if f.touchErr != nil {
				return nil, f.touchErr
			}
			f.touched++
			s := *f.sess
			s.ClientIP = ip
			return &s, nil
		},
		IssueAccess: func(pid, role, sid string) (string, time.Time, error) {
			f.issueCalls++
			return pid + "/" + role + "/" + sid, time.Unix(100, 0), nil
		},
		NotFound: errNoSession,
	}
}

func TestValidateKinds(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*fakeTokens)
		want  ValidateFailureKind
	}{
		{"ok", func(*fakeTokens) {}, ValidateFailureNone},
		{"bad token", func(f *fakeTokens) { f.verifyErr = errors.New("sig") }, ValidateFailureToken},
		{"logged out", func(f *fakeTokens) { f.getErr = errNoSession }, ValidateFailureSessionNotFound},
		{"store down", func(f *fakeTokens) { f.getErr = errors.New("dial") }, ValidateFailureBackend},
		{"foreign session", func(f *fakeTokens) { f.sess.PrincipalID = "p2" }, ValidateFailureSessionMismatch},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFakeTokens()
			tc.setup(f)
			res := RunValidate(context.Background(), "tok", f.validateDeps())
			assert.Equal(t, tc.want, res.Failure)
		})
	}
}

func TestRefreshUsesSessionRole(t *testing.T) {
	f := newFakeTokens()
	res := RunRefresh(context.Background(), "r", "10.1.1.1", "ua", f.refreshDeps())

	require.Equal(t, RefreshFailureNone, res.Failure)
	assert.Equal(t, "p1/inspector/s1", res.AccessToken)
	assert.Equal(t, "10.1.1.1", res.Session.ClientIP)
	assert.Equal(t, 1, f.touched)
}

func TestRefreshLogoutRaceDiscardsToken(t *testing.T) {
	f := newFakeTokens()
	f.touchErr = errNoSession
	res := RunRefresh(context.Background(), "r", "", "", f.refreshDeps())

	assert.Equal(t, RefreshFailureSessionNotFound, res.Failure)
	assert.Empty(t, res.AccessToken)
	assert.Equal(t, 1, f.issueCalls)
}

func TestRefreshFailureKinds(t *testing.T) {
	f := newFakeTokens()
	f.verifyErr = errors.New("wrong type")
	assert.Equal(t, RefreshFailureToken, RunRefresh(context.Background(), "r", "", "", f.refreshDeps()).Failure)

	f = newFakeTokens()
	f.getErr = errors.New("dial")
	assert.Equal(t, RefreshFailureBackend, RunRefresh(context.Background(), "r", "", "", f.refreshDeps()).Failure)

	f = newFakeTokens()
	f.sess.PrincipalID = "p9"
	res := RunRefresh(context.Background(), "r", "", "", f.refreshDeps())
	assert.Equal(t, RefreshFailureSessionMismatch, res.Failure)
	assert.Zero(t, f.issueCalls)
}
