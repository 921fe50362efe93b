package config

import (
	"sync"
	"time"
)

var (
	serverOnce   sync.Once
	serverConfig *ServerConfig
)

// ServerConfig holds the HTTP listener settings for cmd/server.
type ServerConfig struct {
	Port            string
	ShutdownTimeout time.Duration
}

func GetServerConfig() *ServerConfig {
	serverOnce.Do(func() {
		loadEnv()

		serverConfig = &ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			ShutdownTimeout: time.Duration(getEnvInt("SERVER_SHUTDOWN_TIMEOUT_SECONDS", 10)) * time.Second,
		}
	})
	return serverConfig
}

// Addr is the listen address in the form host:port expected by http.Server.
func (c *ServerConfig) Addr() string {
	return ":" + c.Port
}
