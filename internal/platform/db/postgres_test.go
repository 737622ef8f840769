package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig("postgres://u:p@localhost:5432/pricelist?sslmode=disable", PoolConfig{MaxConns: 7, MaxConnIdleTime: time.Minute})
	require.NoError(t, err)
	assert.Equal(t, int32(7), cfg.MaxConns)
	assert.Equal(t, time.Minute, cfg.MaxConnIdleTime)
	assert.Equal(t, ApplicationName, cfg.ConnConfig.RuntimeParams["application_name"])

	cfg, err = ParseConfig("postgres://u:p@localhost/pricelist?application_name=pricectl", PoolConfig{})
	require.NoError(t, err)
	assert.Equal(t, "pricectl", cfg.ConnConfig.RuntimeParams["application_name"])

	_, err = ParseConfig("postgres://u:p@localhost:notaport/x", PoolConfig{})
	assert.Error(t, err)
}
