// Package credentials provides CredentialStore implementations for the
// engine: an in-memory store for tests and single-process tools, and a
// PostgreSQL store over database/sql with the pgx driver.
package credentials
