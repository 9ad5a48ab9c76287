package backend

import (
	"fmt"

	"moneynotes/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type: backendType,

		DatabaseURL:   appConfig.DatabaseURL,
		MaxConns:      int32(appConfig.DatabaseMaxConns),
		RunMigrations: true,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case PostgresBackend:
		if c.DatabaseURL == "" {
			return fmt.Errorf("database URL is required for postgres backend")
		}
		if c.MaxConns < 0 {
			return fmt.Errorf("max conns cannot be negative")
		}

	case MemoryBackend:
		// Memory backend doesn't require additional validation
	}

	return nil
}
