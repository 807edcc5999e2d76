package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recurring/internal/config"
	"recurring/internal/core"
)

func TestFromAppConfig(t *testing.T) {
	_, err := FromAppConfig(nil)
	assert.Error(t, err)

	_, err = FromAppConfig(&config.Config{DataBackend: "postgres"})
	assert.Error(t, err)

	cfg, err := FromAppConfig(&config.Config{
		DataBackend:             "sheets",
		SQLiteDBPath:            "/tmp/x.db",
		GoogleSpreadsheetID:     "sheet",
		GoogleTransactionsSheet: "Transactions",
		GoogleRecurringSheet:    "Recurring",
		GoogleOAuthClientJSON:   "{}",
		GoogleOAuthTokenJSON:    "{}",
	})
	require.NoError(t, err)
	assert.Equal(t, SheetsBackend, cfg.Type)
	assert.Equal(t, "Recurring", cfg.GoogleRecurringSheet)
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"sqlite ok", Config{Type: SQLiteBackend, SQLiteDBPath: "a.db"}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"memory ok", Config{Type: MemoryBackend}, false},
		{"unknown type", Config{Type: "csv"}, true},
		{"sheets without credentials", Config{
			Type:                    SheetsBackend,
			SQLiteDBPath:            "a.db",
			GoogleSpreadsheetID:     "id",
			GoogleTransactionsSheet: "Transactions",
		}, true},
		{"sheets without pattern store", Config{
			Type:                    SheetsBackend,
			GoogleSpreadsheetID:     "id",
			GoogleTransactionsSheet: "Transactions",
			GoogleOAuthClientJSON:   "{}",
			GoogleOAuthTokenJSON:    "{}",
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCreateMemoryBackend(t *testing.T) {
	seed := filepath.Join(t.TempDir(), "seed.csv")
	content := "id,account_id,user_id,date,amount,description\n" +
		"t1,acc-1,user-1,2025-01-15,-12.99,NETFLIX.COM\n"
	require.NoError(t, os.WriteFile(seed, []byte(content), 0o644))

	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: MemoryBackend, MemorySeedFile: seed})
	require.NoError(t, err)
	defer res.Close()

	assert.Nil(t, res.Exporter)
	accounts, err := res.Accounts.ListAccounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"acc-1"}, accounts)

	txs, err := res.Source.ListTransactions(context.Background(), "acc-1", core.NewDate(2025, 1, 1))
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestCreateSQLiteBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "recurring.db")

	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: SQLiteBackend, SQLiteDBPath: path})
	require.NoError(t, err)
	require.NotNil(t, res.Cleanup)

	ps, err := res.Store.ListPatterns(context.Background(), core.PatternFilter{})
	require.NoError(t, err)
	assert.Empty(t, ps)
	assert.NoError(t, res.Close())
}

func TestCreateBackendRejectsInvalidConfig(t *testing.T) {
	_, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: SQLiteBackend})
	assert.Error(t, err)
}
