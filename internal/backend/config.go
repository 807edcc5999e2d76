package backend

import (
	"errors"
	"fmt"

	"recurring/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type: backendType,

		SQLiteDBPath: appConfig.SQLiteDBPath,

		GoogleSpreadsheetID:     appConfig.GoogleSpreadsheetID,
		GoogleTransactionsSheet: appConfig.GoogleTransactionsSheet,
		GoogleRecurringSheet:    appConfig.GoogleRecurringSheet,
		GoogleOAuthClientFile:   appConfig.GoogleOAuthClientFile,
		GoogleOAuthTokenFile:    appConfig.GoogleOAuthTokenFile,
		GoogleOAuthClientJSON:   appConfig.GoogleOAuthClientJSON,
		GoogleOAuthTokenJSON:    appConfig.GoogleOAuthTokenJSON,

		MemorySeedFile: appConfig.MemorySeedFile,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return errors.New("SQLite database path is required for sqlite backend")
		}

	case SheetsBackend:
		if c.GoogleSpreadsheetID == "" {
			return errors.New("Google Spreadsheet ID is required for sheets backend")
		}
		if c.GoogleTransactionsSheet == "" {
			return errors.New("Google transactions sheet name is required for sheets backend")
		}
		// Patterns of the sheets backend live in SQLite.
		if c.SQLiteDBPath == "" {
			return errors.New("SQLite database path is required for sheets backend")
		}
		if c.GoogleOAuthClientFile == "" && c.GoogleOAuthClientJSON == "" {
			return errors.New("either GoogleOAuthClientFile or GoogleOAuthClientJSON must be provided for sheets backend")
		}
		if c.GoogleOAuthTokenFile == "" && c.GoogleOAuthTokenJSON == "" {
			return errors.New("either GoogleOAuthTokenFile or GoogleOAuthTokenJSON must be provided for sheets backend")
		}

	case MemoryBackend:
		// A missing seed file yields an empty store.
	}

	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{SQLiteBackend, SheetsBackend, MemoryBackend}
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.String()
	}
	return names
}
