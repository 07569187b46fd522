package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestPoolConfig_WithDefaults(t *testing.T) {
	tests := []struct {
		name string
		in   PoolConfig
		want PoolConfig
	}{
		{"zero takes defaults", PoolConfig{}, DefaultPoolConfig()},
		{"explicit values kept",
			PoolConfig{MaxOpenConns: 40, MaxIdleConns: 20, ConnMaxLifetime: time.Hour, ConnMaxIdleTime: 2 * time.Minute},
			PoolConfig{MaxOpenConns: 40, MaxIdleConns: 20, ConnMaxLifetime: time.Hour, ConnMaxIdleTime: 2 * time.Minute}},
		{"idle capped at open",
			PoolConfig{MaxOpenConns: 4, MaxIdleConns: 8},
			PoolConfig{MaxOpenConns: 4, MaxIdleConns: 4, ConnMaxLifetime: 5 * time.Minute, ConnMaxIdleTime: time.Minute}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.withDefaults())
		})
	}
}

func TestApplyPool(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, applyPool(db, PoolConfig{MaxOpenConns: 30}))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 30, sqlDB.Stats().MaxOpenConnections)
}

func TestOpen_SQLiteMemory(t *testing.T) {
	db, err := Open(Config{Driver: "sqlite", DSN: ":memory:", LogLevel: "silent"})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	assert.Equal(t, "sqlite", db.Dialector.Name())
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections, "sqlite is pinned to one connection")
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	assert.ErrorIs(t, err, ErrUnknownDriver)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, logger.Silent, parseLogLevel("silent"))
	assert.Equal(t, logger.Error, parseLogLevel("ERROR"))
	assert.Equal(t, logger.Info, parseLogLevel(" info "))
	assert.Equal(t, logger.Warn, parseLogLevel(""))
	assert.Equal(t, logger.Warn, parseLogLevel("verbose"))
}
