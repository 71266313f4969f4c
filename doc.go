// Package authcore is the authentication and access-control core of the
// certification platform: password login with lockout, JWT access and
// refresh tokens anchored to Redis sessions, password policy and change,
// and role-based permission checks.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config],
// the [CredentialStore] contract and value types. Orchestration lives in
// internal/flows; the lockout tracker, audit dispatcher and retry policy
// live under internal/ and are never exported. Tokens, sessions, passwords
// and permissions have their own packages.
//
// # Failure model
//
// Every operation that depends on Redis or the credential store fails
// closed: a backend error surfaces as [ErrBackingStoreUnavailable] and is
// never reported as "not found" or "invalid credentials". Idempotent reads
// are retried once; writes are not.
//
// # What this package must NOT do
//
//   - Create, delete or store principals; the host's CredentialStore owns them.
//   - Reveal whether an email exists; see [PublicMessage].
//   - Import any sub-package that re-imports authcore (no import cycles).
package authcore
