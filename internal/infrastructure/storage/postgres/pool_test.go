package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPoolStats_Saturated(t *testing.T) {
	tests := []struct {
		name  string
		stats PoolStats
		want  bool
	}{
		{"idle pool", PoolStats{Total: 2, Idle: 2, Max: 25}, false},
		{"busy but not full", PoolStats{Total: 25, Acquired: 24, Max: 25}, false},
		{"every connection out", PoolStats{Total: 25, Acquired: 25, Max: 25}, true},
		{"unsized", PoolStats{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.stats.Saturated())
		})
	}
}

func TestNewPool_RejectsBadURL(t *testing.T) {
	_, err := NewPool(context.Background(), DefaultPoolConfig("postgres://%zz"))
	assert.ErrorContains(t, err, "parse database url")
}
