package database

import (
	"testing"

	"car-market-tracker/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_NoneReturnsNil(t *testing.T) {
	for _, typ := range []string{"", "none"} {
		m, err := Open(config.DatabaseConfig{Type: typ})
		require.NoError(t, err)
		assert.Nil(t, m)
	}
}

func TestOpen_UnknownType(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Type: "oracle"})
	assert.ErrorContains(t, err, `unsupported database type "oracle"`)
}

func TestMySQLDSN(t *testing.T) {
	dsn := mysqlDSN(config.MySQLConfig{
		Host: "db", Port: 3306, User: "tracker", Password: "secret", Database: "cars",
	})
	assert.Equal(t, "tracker:secret@tcp(db:3306)/cars?charset=utf8mb4&parseTime=True&loc=Local", dsn)
}

func TestPostgresConnString(t *testing.T) {
	cfg := config.PostgresConfig{
		Host: "pg", Port: 5432, User: "tracker", Password: "secret", Database: "cars",
	}
	assert.Equal(t, "host=pg port=5432 user=tracker password=secret dbname=cars sslmode=disable",
		postgresConnString(cfg))

	cfg.SSLMode = "require"
	assert.Contains(t, postgresConnString(cfg), "sslmode=require")
}

func TestMirrorsImplementInterface(t *testing.T) {
	var _ Mirror = (*GormMirror)(nil)
	var _ Mirror = (*PostgresMirror)(nil)
}
