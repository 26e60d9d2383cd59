package security

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voltstock/internal/core/apperror"
	appctx "voltstock/internal/core/context"
)

var (
	root = appctx.Actor{ID: "u-root", Role: appctx.RoleSuperAdmin}
	ada  = appctx.Actor{ID: "u-ada", Role: appctx.RoleAdmin}
	gus  = appctx.Actor{ID: "u-gus", Role: appctx.RoleAgent}
)

func TestDefaultRules(t *testing.T) {
	p := MustPolicy()
	ctx := context.Background()
	req := Resource{"requested_by_id": gus.ID, "requested_from_id": ada.ID}

	tests := []struct {
		name     string
		action   Action
		actor    appctx.Actor
		resource Resource
		allowed  bool
	}{
		{"admin creates request", ActionRequestCreate, ada, nil, true},
		{"super-admin cannot create request", ActionRequestCreate, root, nil, false},
		{"addressee dispatches", ActionRequestDispatch, ada, req, true},
		{"super-admin dispatches", ActionRequestDispatch, root, req, true},
		{"requester cannot dispatch", ActionRequestDispatch, gus, req, false},
		{"requester confirms", ActionRequestConfirm, gus, req, true},
		{"addressee cannot confirm", ActionRequestConfirm, ada, req, false},
		{"agent sells", ActionSaleCreate, gus, nil, true},
		{"only admin opens return", ActionReturnCreate, gus, nil, false},
		{"super-admin processes return", ActionReturnProcess, root, nil, true},
		{"admin cannot process return", ActionReturnProcess, ada, nil, false},
		{"holder views own stock", ActionHolderView, ada, Resource{"holder_id": ada.ID}, true},
		{"agent cannot view other stock", ActionHolderView, gus, Resource{"holder_id": ada.ID}, false},
		{"super-admin reads full log", ActionHistoryView, root, nil, true},
		{"admin cannot read full log", ActionHistoryView, ada, nil, false},
		{"missing attribute fails closed", ActionRequestDispatch, ada, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.Authorize(ctx, tt.action, tt.actor, tt.resource)
			if tt.allowed {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperror.IsForbidden(err))
		})
	}
}

func TestOverrides(t *testing.T) {
	p, err := NewPolicy(map[Action]string{
		ActionReturnCreate: `actor.role in ["admin", "agent"]`,
	})
	require.NoError(t, err)
	assert.NoError(t, p.Authorize(context.Background(), ActionReturnCreate, gus, nil))
	assert.Contains(t, p.Rules(), `stock_return.create: actor.role in ["admin", "agent"]`)
}

func TestInvalidRulesAreRejected(t *testing.T) {
	_, err := NewPolicy(map[Action]string{ActionSaleCreate: `actor.role ==`})
	assert.Error(t, err)

	_, err = NewPolicy(map[Action]string{ActionSaleCreate: `actor.id`})
	assert.ErrorContains(t, err, "must evaluate to bool")
}

func TestUnknownActionIsForbidden(t *testing.T) {
	err := MustPolicy().Authorize(context.Background(), Action("warehouse.burn"), root, nil)
	assert.True(t, apperror.IsForbidden(err))
}
