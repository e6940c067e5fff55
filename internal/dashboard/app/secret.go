package app

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/parlourtech/whopdash/pkg/cryptox"
)

// loadSessionSecret returns the raw secret material used to derive the
// signing and sealing keys. Priority: inline env value, then a secrets file,
// then a generated ephemeral secret (sessions won't survive a restart).
func loadSessionSecret(cfg Config, logger *slog.Logger) ([]byte, error) {
	if cfg.SessionSecret != "" {
		return []byte(cfg.SessionSecret), nil
	}

	if cfg.SessionSecretFile != "" {
		data, err := os.ReadFile(cfg.SessionSecretFile)
		if err != nil {
			return nil, fmt.Errorf("read session secret file: %w", err)
		}
		secret := strings.TrimSpace(string(data))
		if secret == "" {
			return nil, fmt.Errorf("session secret file %s is empty", cfg.SessionSecretFile)
		}
		return []byte(secret), nil
	}

	logger.Warn("no session secret configured; using an ephemeral secret, " +
		"all sessions will be invalidated on restart")

	// A failing system RNG leaves nothing to run with anyway.
	return []byte(cryptox.MustGenerateToken(cryptox.TokenSize256)), nil
}
