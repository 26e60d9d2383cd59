package numerator

import (
	"context"
	"strconv"
	"sync"
)

// MockGenerator is a test implementation of SequenceGenerator.
// Without NextFunc it counts up from 1 per table.
type MockGenerator struct {
	NextFunc func(ctx context.Context, table string) (string, error)

	mu   sync.Mutex
	last map[string]int64
}

// NextSequentialID implements SequenceGenerator.
func (m *MockGenerator) NextSequentialID(ctx context.Context, table string) (string, error) {
	if m.NextFunc != nil {
		return m.NextFunc(ctx, table)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last == nil {
		m.last = make(map[string]int64)
	}
	m.last[table]++
	return strconv.FormatInt(m.last[table], 10), nil
}

var _ SequenceGenerator = (*MockGenerator)(nil)
