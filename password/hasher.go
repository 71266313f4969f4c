package password

// Hasher hashes new passwords with argon2id and verifies both argon2id and
// legacy bcrypt hashes.
type Hasher struct {
	argon *Argon2
}

// NewHasher builds a Hasher around the given argon2id parameters.
func NewHasher(cfg Argon2Config) (*Hasher, error) {
	a, err := NewArgon2(cfg)
	if err != nil {
		return nil, err
	}
	return &Hasher{argon: a}, nil
}

// Hash returns an argon2id PHC string for password.
func (h *Hasher) Hash(password string) (string, error) {
	return h.argon.Hash(password)
}

// Verify reports whether password matches encoded. Unknown schemes return
// ErrUnsupportedHash.
func (h *Hasher) Verify(password, encoded string) (bool, error) {
	switch {
	case isArgon2ID(encoded):
		return h.argon.Verify(password, encoded)
	case isBcrypt(encoded):
		return verifyBcrypt(password, encoded)
	default:
		return false, ErrUnsupportedHash
	}
}

// NeedsUpgrade reports whether encoded should be replaced by a fresh argon2id
// hash with the current parameters.
func (h *Hasher) NeedsUpgrade(encoded string) (bool, error) {
	switch {
	case isArgon2ID(encoded):
		return h.argon.NeedsUpgrade(encoded)
	case isBcrypt(encoded):
		return true, nil
	default:
		return false, ErrUnsupportedHash
	}
}
