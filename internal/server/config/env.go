package config

import "github.com/dmitrijs2005/cropdb/internal/flagx"

// parseEnv overlays Config with environment variables:
//
//	DATABASE_URL           PostgreSQL DSN
//	CROPDB_GRPC_ADDR       gRPC bind address
//	CROPDB_METRICS_ADDR    metrics bind address, empty disables
//	CROPDB_LOG_LEVEL       debug|info|warn|error
//	CROPDB_SECRET          token signing secret
//	CROPDB_AUTH_TIMEOUT    session lifetime, seconds
//	CROPDB_RESET_TIMEOUT   reset token lifetime, seconds
//	CROPDB_AUTH_ATTEMPTS   failed logins before ban
//	CROPDB_SUBSCRIPTION_DAYS default subscription extension
//	CROPDB_ADMIN_USER / CROPDB_ADMIN_PASS / CROPDB_TEST_USER / CROPDB_TEST_PASS
//
// Malformed numeric values panic, like malformed JSON does.
func parseEnv(config *Config) {
	flagx.EnvString("DATABASE_URL", &config.DatabaseDSN)
	flagx.EnvString("CROPDB_GRPC_ADDR", &config.EndpointAddrGRPC)
	flagx.EnvString("CROPDB_METRICS_ADDR", &config.MetricsAddr)
	flagx.EnvString("CROPDB_LOG_LEVEL", &config.LogLevel)
	flagx.EnvString("CROPDB_SECRET", &config.SecretKey)
	flagx.EnvString("CROPDB_ADMIN_USER", &config.AdminUser)
	flagx.EnvString("CROPDB_ADMIN_PASS", &config.AdminPass)
	flagx.EnvString("CROPDB_TEST_USER", &config.TestUser)
	flagx.EnvString("CROPDB_TEST_PASS", &config.TestPass)

	for _, err := range []error{
		flagx.EnvSeconds("CROPDB_AUTH_TIMEOUT", &config.AuthTimeout),
		flagx.EnvSeconds("CROPDB_RESET_TIMEOUT", &config.ResetTimeout),
		flagx.EnvInt("CROPDB_AUTH_ATTEMPTS", &config.AuthAttempts),
		flagx.EnvInt("CROPDB_SUBSCRIPTION_DAYS", &config.SubscriptionDays),
	} {
		if err != nil {
			panic(err)
		}
	}
}
