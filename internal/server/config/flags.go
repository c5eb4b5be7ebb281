package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/cropdb/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   gRPC bind address (e.g., ":50051")
//	-m string   metrics bind address, empty disables
//	-d string   PostgreSQL DSN
//	-l string   log level
//	-s string   token signing secret
//	-t int      session lifetime, seconds
//	-r int      reset token lifetime, seconds
//	-n int      failed logins before ban
//	-x int      default subscription extension, days
//
// Bootstrap credentials are deliberately not accepted on the command line.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-m", "-d", "-l", "-s", "-t", "-r", "-n", "-x"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run server")
	fs.StringVar(&config.MetricsAddr, "m", config.MetricsAddr, "metrics address, empty disables")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	authTimeout := fs.Int("t", int(config.AuthTimeout.Seconds()), "session lifetime (in seconds)")
	resetTimeout := fs.Int("r", int(config.ResetTimeout.Seconds()), "reset token lifetime (in seconds)")

	fs.IntVar(&config.AuthAttempts, "n", config.AuthAttempts, "failed logins before ban")
	fs.IntVar(&config.SubscriptionDays, "x", config.SubscriptionDays, "default subscription extension (in days)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AuthTimeout = time.Duration(*authTimeout) * time.Second
	config.ResetTimeout = time.Duration(*resetTimeout) * time.Second
}
