// Package password validates password strength and age, and hashes
// passwords.
//
// New hashes are argon2id in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Hasher] also verifies bcrypt hashes carried over from the previous
// platform backend and reports them through [Hasher.NeedsUpgrade] so the
// caller can rehash after the next successful login.
//
// [Policy] is stateless. [Policy.Validate] returns every unmet rule at once.
//
// This package never stores passwords and never logs plaintext.
package password
