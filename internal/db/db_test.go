package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/yamdb/apiserver/config"
)

func TestDSN(t *testing.T) {
	cfg := config.DatabaseConfig{
		Host:     "db",
		Port:     5433,
		User:     "yamdb",
		Password: "p@ss word",
		DBName:   "yamdb_db",
	}
	assert.Equal(t, "postgres://yamdb:p%40ss%20word@db:5433/yamdb_db?sslmode=disable", DSN(cfg))

	cfg.UseSSL = true
	assert.Contains(t, DSN(cfg), "sslmode=require")
}
