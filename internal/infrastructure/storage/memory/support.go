package memory

import (
	"context"
	"fmt"
	"strconv"

	"voltstock/internal/core/apperror"
	"voltstock/internal/core/numerator"
	"voltstock/internal/domain/audit"
	"voltstock/internal/domain/directory"
)

// DirectoryRepo implements directory.Directory.
type DirectoryRepo struct{ s *Store }

var _ directory.Directory = (*DirectoryRepo)(nil)

func (r *DirectoryRepo) GetHolder(ctx context.Context, id string) (directory.Holder, error) {
	var h directory.Holder
	err := r.s.view(ctx, func(st *state) error {
		var ok bool
		if h, ok = st.users[id]; !ok {
			return apperror.NewNotFound("user", id)
		}
		return nil
	})
	return h, err
}

// SequenceGenerator implements numerator.SequenceGenerator over stored requests.
// The surrounding transaction already serializes allocation.
type SequenceGenerator struct{ s *Store }

var _ numerator.SequenceGenerator = (*SequenceGenerator)(nil)

func (g *SequenceGenerator) NextSequentialID(ctx context.Context, table string) (string, error) {
	if !numerator.IsSequentialTable(table) {
		return "", fmt.Errorf("table %q does not use sequential ids", table)
	}
	var next int64
	err := g.s.locked(ctx, func(st *state) error {
		var maxID int64
		for id := range st.requests {
			n, err := strconv.ParseInt(id, 10, 64)
			if err != nil {
				continue
			}
			if n > maxID {
				maxID = n
			}
		}
		next = maxID + 1
		return nil
	})
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(next, 10), nil
}

// AuditRecorder implements audit.Recorder.
type AuditRecorder struct{ s *Store }

var (
	_ audit.Recorder = (*AuditRecorder)(nil)
	_ audit.Reader   = (*AuditRecorder)(nil)
)

func (a *AuditRecorder) Record(ctx context.Context, entry audit.Entry) error {
	return a.s.update(ctx, func(st *state) error {
		st.audit = append(st.audit, entry)
		return nil
	})
}

func (a *AuditRecorder) History(ctx context.Context, entityType, entityID string, limit int) ([]audit.Entry, error) {
	var out []audit.Entry
	err := a.s.view(ctx, func(st *state) error {
		for i := len(st.audit) - 1; i >= 0; i-- {
			e := st.audit[i]
			if e.EntityType != entityType || e.EntityID != entityID {
				continue
			}
			out = append(out, e)
			if limit > 0 && len(out) == limit {
				break
			}
		}
		return nil
	})
	return out, err
}
