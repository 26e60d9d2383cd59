// Package security authorizes state transitions with CEL rules.
//
// Each action maps to one boolean expression over two variables:
// actor (id, name, role) and resource (action-specific fields such as
// requested_by_id or holder_id). Rules are compiled once at startup.
package security

import (
	"context"
	"fmt"
	"maps"
	"sort"

	"github.com/google/cel-go/cel"

	"voltstock/internal/core/apperror"
	appctx "voltstock/internal/core/context"
)

// Action names a guarded operation.
type Action string

const (
	ActionRequestCreate   Action = "stock_request.create"
	ActionRequestDispatch Action = "stock_request.dispatch"
	ActionRequestConfirm  Action = "stock_request.confirm"
	ActionRequestUpdate   Action = "stock_request.update"
	ActionRequestDelete   Action = "stock_request.delete"
	ActionSaleCreate      Action = "sale.create"
	ActionSaleDelete      Action = "sale.delete"
	ActionReturnCreate    Action = "stock_return.create"
	ActionReturnProcess   Action = "stock_return.process"
	ActionReturnDelete    Action = "stock_return.delete"
	ActionInventoryAdjust Action = "inventory.adjust"
	ActionHolderView      Action = "inventory.holder_view"
	ActionHistoryView     Action = "inventory.history_view"
)

// DefaultRules is the built-in rule set.
var DefaultRules = map[Action]string{
	ActionRequestCreate:   `actor.role in ["admin", "agent"]`,
	ActionRequestDispatch: `actor.role == "super-admin" || actor.id == resource.requested_from_id`,
	ActionRequestConfirm:  `actor.id == resource.requested_by_id`,
	ActionRequestUpdate:   `actor.id == resource.requested_by_id`,
	ActionRequestDelete:   `actor.role == "super-admin" || actor.id == resource.requested_by_id`,
	ActionSaleCreate:      `actor.role in ["super-admin", "admin", "agent"]`,
	ActionSaleDelete:      `actor.role == "super-admin" || actor.id == resource.created_by_id`,
	ActionReturnCreate:    `actor.role == "admin"`,
	ActionReturnProcess:   `actor.role == "super-admin"`,
	ActionReturnDelete:    `actor.role == "super-admin" || actor.id == resource.holder_id`,
	ActionInventoryAdjust: `actor.role == "super-admin"`,
	ActionHolderView:      `actor.role == "super-admin" || actor.id == resource.holder_id`,
	ActionHistoryView:     `actor.role == "super-admin"`,
}

// Resource is the attribute bag a rule may inspect.
type Resource map[string]any

// Authorizer decides whether an actor may perform an action.
type Authorizer interface {
	Authorize(ctx context.Context, action Action, actor appctx.Actor, resource Resource) error
}

// Policy evaluates compiled CEL programs. It is immutable after construction.
type Policy struct {
	programs map[Action]cel.Program
	sources  map[Action]string
}

var _ Authorizer = (*Policy)(nil)

// NewPolicy compiles DefaultRules with overrides applied on top.
func NewPolicy(overrides map[Action]string) (*Policy, error) {
	rules := maps.Clone(DefaultRules)
	for action, expr := range overrides {
		rules[action] = expr
	}

	env, err := cel.NewEnv(
		cel.Variable("actor", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("resource", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}

	p := &Policy{
		programs: make(map[Action]cel.Program, len(rules)),
		sources:  rules,
	}
	for action, expr := range rules {
		ast, iss := env.Compile(expr)
		if iss != nil && iss.Err() != nil {
			return nil, fmt.Errorf("compile rule %s: %w", action, iss.Err())
		}
		if !ast.OutputType().IsExactType(cel.BoolType) {
			return nil, fmt.Errorf("rule %s must evaluate to bool, got %s", action, ast.OutputType())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("program rule %s: %w", action, err)
		}
		p.programs[action] = prg
	}
	return p, nil
}

// MustPolicy is NewPolicy for the built-in rules; it panics on failure.
func MustPolicy() *Policy {
	p, err := NewPolicy(nil)
	if err != nil {
		panic(err)
	}
	return p
}

// Authorize returns a Forbidden AppError unless the rule for action holds.
// A missing resource attribute fails the rule closed.
func (p *Policy) Authorize(ctx context.Context, action Action, actor appctx.Actor, resource Resource) error {
	prg, ok := p.programs[action]
	if !ok {
		return apperror.NewForbidden(fmt.Sprintf("no rule for action %s", action))
	}

	if resource == nil {
		resource = Resource{}
	}
	out, _, err := prg.ContextEval(ctx, map[string]any{
		"actor": map[string]any{
			"id":   actor.ID,
			"name": actor.Name,
			"role": string(actor.Role),
		},
		"resource": map[string]any(resource),
	})
	if err != nil {
		return apperror.NewForbidden(fmt.Sprintf("%s is not permitted for role %s", action, actor.Role)).
			WithCause(err)
	}
	if allowed, _ := out.Value().(bool); !allowed {
		return apperror.NewForbidden(fmt.Sprintf("%s is not permitted for role %s", action, actor.Role)).
			WithDetail("action", string(action))
	}
	return nil
}

// Rules returns the active rule sources sorted by action, for diagnostics.
func (p *Policy) Rules() []string {
	out := make([]string, 0, len(p.sources))
	for action, expr := range p.sources {
		out = append(out, fmt.Sprintf("%s: %s", action, expr))
	}
	sort.Strings(out)
	return out
}
