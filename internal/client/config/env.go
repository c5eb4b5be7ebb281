package config

import "github.com/dmitrijs2005/cropdb/internal/flagx"

// parseEnv overlays CROPDB_SERVER and CROPDB_CALL_TIMEOUT (seconds or a
// duration string). Malformed values panic, like the other loaders.
func parseEnv(cfg *Config) {
	flagx.EnvString("CROPDB_SERVER", &cfg.ServerEndpointAddr)
	if err := flagx.EnvSeconds("CROPDB_CALL_TIMEOUT", &cfg.CallTimeout); err != nil {
		panic(err)
	}
}
