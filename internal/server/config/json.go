package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/cropdb/internal/flagx"
	"github.com/dmitrijs2005/cropdb/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Durations accept both
// strings such as "1h" and integer nanoseconds.
type JsonConfig struct {
	EndpointAddrGRPC string         `json:"endpoint_addr_grpc"`
	MetricsAddr      string         `json:"metrics_addr"`
	DatabaseDSN      string         `json:"database_dsn"`
	LogLevel         string         `json:"log_level"`
	SecretKey        string         `json:"secret_key"`
	AuthTimeout      timex.Duration `json:"auth_timeout"`
	ResetTimeout     timex.Duration `json:"reset_timeout"`
	AuthAttempts     int            `json:"auth_attempts"`
	SubscriptionDays int            `json:"subscription_days"`
	AdminUser        string         `json:"admin_user"`
	AdminPass        string         `json:"admin_pass"`
	TestUser         string         `json:"test_user"`
	TestPass         string         `json:"test_pass"`
}

// parseJson loads the file named by -c/-config, if any, over config.
// Keys missing from the file keep their current values. Unreadable files or
// invalid JSON panic.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigFileFlag()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{
		EndpointAddrGRPC: config.EndpointAddrGRPC,
		MetricsAddr:      config.MetricsAddr,
		DatabaseDSN:      config.DatabaseDSN,
		LogLevel:         config.LogLevel,
		SecretKey:        config.SecretKey,
		AuthTimeout:      timex.Duration{Duration: config.AuthTimeout},
		ResetTimeout:     timex.Duration{Duration: config.ResetTimeout},
		AuthAttempts:     config.AuthAttempts,
		SubscriptionDays: config.SubscriptionDays,
		AdminUser:        config.AdminUser,
		AdminPass:        config.AdminPass,
		TestUser:         config.TestUser,
		TestPass:         config.TestPass,
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	config.EndpointAddrGRPC = c.EndpointAddrGRPC
	config.MetricsAddr = c.MetricsAddr
	config.DatabaseDSN = c.DatabaseDSN
	config.LogLevel = c.LogLevel
	config.SecretKey = c.SecretKey
	config.AuthTimeout = c.AuthTimeout.Duration
	config.ResetTimeout = c.ResetTimeout.Duration
	config.AuthAttempts = c.AuthAttempts
	config.SubscriptionDays = c.SubscriptionDays
	config.AdminUser = c.AdminUser
	config.AdminPass = c.AdminPass
	config.TestUser = c.TestUser
	config.TestPass = c.TestPass
}
