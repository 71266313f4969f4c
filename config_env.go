package authcore

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jonmaxmore/Botanical-Audit-Framework-sub006/jwt"
)

const (
	envJWTMethod         = "AUTHCORE_JWT_METHOD"
	envJWTSecret         = "AUTHCORE_JWT_SECRET"
	envJWTPrivateKeyFile = "AUTHCORE_JWT_PRIVATE_KEY_FILE"
	envJWTPublicKeyFile  = "AUTHCORE_JWT_PUBLIC_KEY_FILE"
	envJWTIssuer         = "AUTHCORE_JWT_ISSUER"
	envJWTAudience       = "AUTHCORE_JWT_AUDIENCE"
	envAccessTTL         = "AUTHCORE_ACCESS_TTL"
	envRefreshTTL        = "AUTHCORE_REFRESH_TTL"
	envSessionTimeout    = "AUTHCORE_SESSION_TIMEOUT"
	envLockoutEnabled    = "AUTHCORE_LOCKOUT_ENABLED"
	envLockoutThreshold  = "AUTHCORE_LOCKOUT_THRESHOLD"
	envLockoutWindow     = "AUTHCORE_LOCKOUT_WINDOW"
	envLockoutDuration   = "AUTHCORE_LOCKOUT_DURATION"
	envPasswordMinLength = "AUTHCORE_PASSWORD_MIN_LENGTH"
	envPasswordMaxAge    = "AUTHCORE_PASSWORD_MAX_AGE"
	envRedisNamespace    = "AUTHCORE_REDIS_NAMESPACE"
	envAuditEnabled      = "AUTHCORE_AUDIT_ENABLED"
	envMetricsEnabled    = "AUTHCORE_METRICS_ENABLED"
)

// LoadConfigFromEnv starts from DefaultConfig and overrides every field
// that has an AUTHCORE_* variable set. The result is not validated; Build
// does that.
func LoadConfigFromEnv() (Config, error) {
	cfg := defaultConfig()

	cfg.JWT.SigningMethod = jwt.SigningMethod(getEnv(envJWTMethod, string(cfg.JWT.SigningMethod)))
	if s := getEnv(envJWTSecret, ""); s != "" {
		cfg.JWT.Secret = []byte(s)
	}
	if path := getEnv(envJWTPrivateKeyFile, ""); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("%s: %w", envJWTPrivateKeyFile, err)
		}
		cfg.JWT.PrivateKey = b
	}
	if path := getEnv(envJWTPublicKeyFile, ""); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("%s: %w", envJWTPublicKeyFile, err)
		}
		cfg.JWT.PublicKey = b
	}
	cfg.JWT.Issuer = getEnv(envJWTIssuer, cfg.JWT.Issuer)
	cfg.JWT.Audience = getEnv(envJWTAudience, cfg.JWT.Audience)
	cfg.Redis.Namespace = getEnv(envRedisNamespace, cfg.Redis.Namespace)

	var err error
	if cfg.JWT.AccessTTL, err = envDuration(envAccessTTL, cfg.JWT.AccessTTL); err != nil {
		return cfg, err
	}
	if cfg.JWT.RefreshTTL, err = envDuration(envRefreshTTL, cfg.JWT.RefreshTTL); err != nil {
		return cfg, err
	}
	if cfg.Session.Timeout, err = envDuration(envSessionTimeout, cfg.Session.Timeout); err != nil {
		return cfg, err
	}
	if cfg.Lockout.Enabled, err = envBool(envLockoutEnabled, cfg.Lockout.Enabled); err != nil {
		return cfg, err
	}
	if cfg.Lockout.Threshold, err = envInt(envLockoutThreshold, cfg.Lockout.Threshold); err != nil {
		return cfg, err
	}
	if cfg.Lockout.Window, err = envDuration(envLockoutWindow, cfg.Lockout.Window); err != nil {
		return cfg, err
	}
	if cfg.Lockout.Duration, err = envDuration(envLockoutDuration, cfg.Lockout.Duration); err != nil {
		return cfg, err
	}
	if cfg.Password.Policy.MinLength, err = envInt(envPasswordMinLength, cfg.Password.Policy.MinLength); err != nil {
		return cfg, err
	}
	if cfg.Password.Policy.MaxAge, err = envDuration(envPasswordMaxAge, cfg.Password.Policy.MaxAge); err != nil {
		return cfg, err
	}
	if cfg.Audit.Enabled, err = envBool(envAuditEnabled, cfg.Audit.Enabled); err != nil {
		return cfg, err
	}
	if cfg.Metrics.Enabled, err = envBool(envMetricsEnabled, cfg.Metrics.Enabled); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func getEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

func envDuration(name string, fallback time.Duration) (time.Duration, error) {
	raw := getEnv(name, "")
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", name, err)
	}
	return d, nil
}

func envInt(name string, fallback int) (int, error) {
	raw := getEnv(name, "")
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", name, err)
	}
	return n, nil
}

func envBool(name string, fallback bool) (bool, error) {
	raw := getEnv(name, "")
	if raw == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", name, err)
	}
	return b, nil
}
