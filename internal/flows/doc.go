// Package flows contains the orchestration behind every Engine operation.
//
// Each flow function (RunAuthenticate, RunValidate, RunRefresh, etc.) takes
// a typed dependency struct of function fields and returns a result value
// that classifies the outcome. The root package maps those results onto
// its public errors, metrics and audit events.
//
// # Authentication
//
// RunAuthenticate is an explicit state machine:
//
//	START → LOOKUP_PRINCIPAL → CHECK_LOCKOUT → CHECK_ACTIVE → VERIFY_PASSWORD
//	      → CHECK_PASSWORD_AGE → ISSUE_TOKENS → CREATE_SESSION → SUCCESS
//
// Any state may terminate in FAILED with a reason code. The visited states
// are recorded in AuthenticateResult.Trace.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import the root package.
//   - Perform I/O directly; all I/O goes through the dependency functions.
package flows
