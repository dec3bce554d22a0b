package config

import (
	"strings"
)

// maskSecret keeps the first and last 4 characters visible and masks the
// rest. Short secrets are masked completely.
func maskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) < 8 {
		return "***"
	}
	return secret[:4] + strings.Repeat("*", len(secret)-8) + secret[len(secret)-4:]
}

// maskTelegramToken masks the secret part of a <bot_id>:<token> pair,
// keeping the bot id visible for diagnostics.
func maskTelegramToken(token string) string {
	if token == "" {
		return ""
	}
	parts := strings.Split(token, ":")
	if len(parts) != 2 {
		return maskSecret(token)
	}
	return parts[0] + ":" + maskSecret(parts[1])
}
