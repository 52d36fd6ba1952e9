package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationFiles(t *testing.T) {
	files, err := MigrationFiles()
	require.NoError(t, err)

	require.NotEmpty(t, files)
	assert.Equal(t, "001_init.sql", files[0])
	assert.IsIncreasing(t, files)
}

func TestInitMigration_CreatesTables(t *testing.T) {
	body, err := migrations.ReadFile("migrations/001_init.sql")
	require.NoError(t, err)

	assert.Contains(t, string(body), "CREATE TABLE IF NOT EXISTS bank_transactions")
	assert.Contains(t, string(body), "CREATE TABLE IF NOT EXISTS contracts")
	assert.Contains(t, string(body), "UNIQUE (bank_id, bank_transaction_id)")
}
