package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/cropdb/internal/flagx"
	"github.com/dmitrijs2005/cropdb/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. The timeout
// may be a string like "3s" or integer nanoseconds.
type JsonConfig struct {
	ServerEndpointAddr string         `json:"server_endpoint_addr"`
	CallTimeout        timex.Duration `json:"call_timeout"`
}

// parseJson overlays Config with values from the file named by -c or
// -config. Keys missing from the file keep their current values. Read or
// unmarshal errors panic.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.ConfigFileFlag()
	if jsonConfigFile == "" {
		return
	}

	jc := JsonConfig{
		ServerEndpointAddr: cfg.ServerEndpointAddr,
		CallTimeout:        timex.Duration{Duration: cfg.CallTimeout},
	}

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	cfg.ServerEndpointAddr = jc.ServerEndpointAddr
	cfg.CallTimeout = time.Duration(jc.CallTimeout.Duration)
}
