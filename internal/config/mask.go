package config

import "github.com/manthysbr/localagent/internal/core/domain"

// MaskSecret returns a masked version safe for logs: "****abcd"
func MaskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}

// Masked returns a copy of cfg with secrets masked, for logging.
func Masked(cfg *domain.AppConfig) domain.AppConfig {
	cp := *cfg
	cp.LLM.APIKey = MaskSecret(cfg.LLM.APIKey)
	return cp
}
