package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	argon2ID = "argon2id"

	minArgonMemoryKB    uint32 = 8 * 1024
	minArgonTime        uint32 = 1
	minArgonParallelism uint8  = 1
	minArgonSaltLength  uint32 = 16
	minArgonKeyLength   uint32 = 16
)

var (
	// ErrMalformedHash is returned when a stored hash cannot be parsed.
	ErrMalformedHash = errors.New("password: malformed hash")
	// ErrUnsupportedHash is returned for hash schemes this package cannot verify.
	ErrUnsupportedHash = errors.New("password: unsupported hash scheme")
)

// Argon2Config holds argon2id cost parameters. Memory is in KiB.
type Argon2Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Config returns the parameters used for new hashes.
func DefaultArgon2Config() Argon2Config {
	return Argon2Config{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Validate checks the parameters against the accepted floor.
func (c Argon2Config) Validate() error {
	switch {
	case c.Memory < minArgonMemoryKB:
		return errors.New("argon2 memory must be >= 8192 KiB")
	case c.Time < minArgonTime:
		return errors.New("argon2 time must be >= 1")
	case c.Parallelism < minArgonParallelism:
		return errors.New("argon2 parallelism must be >= 1")
	case c.SaltLength < minArgonSaltLength:
		return errors.New("argon2 salt length must be >= 16")
	case c.KeyLength < minArgonKeyLength:
		return errors.New("argon2 key length must be >= 16")
	}
	return nil
}

// Argon2 hashes and verifies argon2id PHC strings:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
type Argon2 struct {
	config Argon2Config
}

type argonPHC struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

// NewArgon2 validates cfg and returns a hasher using it.
func NewArgon2(cfg Argon2Config) (*Argon2, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Argon2{config: cfg}, nil
}

// Hash derives a fresh salted argon2id hash. Password bytes are used as given,
// without Unicode normalization.
func (a *Argon2) Hash(password string) (string, error) {
	salt := make([]byte, a.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("password: read salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, a.config.Time, a.config.Memory, a.config.Parallelism, a.config.KeyLength)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2ID,
		argon2.Version,
		a.config.Memory,
		a.config.Time,
		a.config.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches encoded.
func (a *Argon2) Verify(password, encoded string) (bool, error) {
	phc, err := parseArgonPHC(encoded)
	if err != nil {
		return false, err
	}

	key := argon2.IDKey([]byte(password), phc.salt, phc.time, phc.memory, phc.parallelism, uint32(len(phc.key)))
	return subtle.ConstantTimeCompare(key, phc.key) == 1, nil
}

// NeedsUpgrade reports whether encoded was produced with weaker parameters
// than the current configuration.
func (a *Argon2) NeedsUpgrade(encoded string) (bool, error) {
	phc, err := parseArgonPHC(encoded)
	if err != nil {
		return false, err
	}
	return phc.memory < a.config.Memory ||
		phc.time < a.config.Time ||
		phc.parallelism < a.config.Parallelism ||
		uint32(len(phc.key)) != a.config.KeyLength, nil
}

func isArgon2ID(encoded string) bool {
	return strings.HasPrefix(encoded, "$"+argon2ID+"$")
}

func parseArgonPHC(encoded string) (*argonPHC, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, ErrMalformedHash
	}
	if parts[1] != argon2ID {
		return nil, ErrUnsupportedHash
	}

	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil || !strings.HasPrefix(parts[2], "v=") {
		return nil, ErrMalformedHash
	}
	if version != argon2.Version {
		return nil, ErrUnsupportedHash
	}

	phc := &argonPHC{}
	if err := phc.parseParams(parts[3]); err != nil {
		return nil, err
	}

	if phc.salt, err = decodeB64(parts[4]); err != nil || len(phc.salt) < int(minArgonSaltLength) {
		return nil, ErrMalformedHash
	}
	if phc.key, err = decodeB64(parts[5]); err != nil || len(phc.key) == 0 {
		return nil, ErrMalformedHash
	}
	return phc, nil
}

func (p *argonPHC) parseParams(raw string) error {
	seen := 0
	for _, pair := range strings.Split(raw, ",") {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return ErrMalformedHash
		}
		switch name {
		case "m":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil || uint32(v) < minArgonMemoryKB {
				return ErrMalformedHash
			}
			p.memory = uint32(v)
		case "t":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil || uint32(v) < minArgonTime {
				return ErrMalformedHash
			}
			p.time = uint32(v)
		case "p":
			v, err := strconv.ParseUint(value, 10, 8)
			if err != nil || uint8(v) < minArgonParallelism {
				return ErrMalformedHash
			}
			p.parallelism = uint8(v)
		default:
			return ErrMalformedHash
		}
		seen++
	}
	if seen != 3 || p.memory == 0 || p.time == 0 || p.parallelism == 0 {
		return ErrMalformedHash
	}
	return nil
}

// decodeB64 accepts both padded and unpadded standard base64, since hashes
// from other PHC producers vary.
func decodeB64(s string) ([]byte, error) {
	if strings.HasSuffix(s, "=") {
		return base64.StdEncoding.DecodeString(s)
	}
	return base64.RawStdEncoding.DecodeString(s)
}
