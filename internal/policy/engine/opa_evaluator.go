// Package engine authorizes admin-account management with an OPA Rego policy.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/open-policy-agent/opa/v1/rego"
)

const policyQuery = "data.adhoc.admin_users"

// DefaultPolicy is the built-in Rego module. A replacement loaded from ADMIN_POLICY_PATH must keep
// the package name and expose `allow` (bool) and `deny` (set of reason strings).
const DefaultPolicy = `package adhoc.admin_users

default allow := false

listing_actions := {"list", "create"}

target_actions := {"reset_password", "delete"}

known_action if input.action in listing_actions

known_action if input.action in target_actions

deny contains "super admin required" if input.actor.role != "SUPER_ADMIN"

deny contains "unknown action" if not known_action

deny contains "target required" if {
	input.action in target_actions
	not input.target
}

deny contains "cannot modify a super admin" if {
	input.action in target_actions
	input.target.role == "SUPER_ADMIN"
}

deny contains "cannot modify your own account" if {
	input.action in target_actions
	input.target.id == input.actor.id
}

allow if count(deny) == 0
`

// OPAEvaluator evaluates the admin management policy. The query is prepared once at construction.
type OPAEvaluator struct {
	query rego.PreparedEvalQuery
}

// NewOPAEvaluator compiles module (DefaultPolicy when empty) and prepares the decision query.
func NewOPAEvaluator(ctx context.Context, module string) (*OPAEvaluator, error) {
	if module == "" {
		module = DefaultPolicy
	}
	pq, err := rego.New(
		rego.Query(policyQuery),
		rego.Module("admin_users.rego", module),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("policy: compile: %w", err)
	}
	return &OPAEvaluator{query: pq}, nil
}

// NewOPAEvaluatorFromFile loads the Rego module at path, or uses DefaultPolicy when path is empty.
func NewOPAEvaluatorFromFile(ctx context.Context, path string) (*OPAEvaluator, error) {
	if path == "" {
		return NewOPAEvaluator(ctx, "")
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("policy: read %s: %w", path, err)
	}
	return NewOPAEvaluator(ctx, string(src))
}

// Authorize evaluates in. Any evaluation problem denies and returns the error.
func (e *OPAEvaluator) Authorize(ctx context.Context, in Input) (Decision, error) {
	rs, err := e.query.Eval(ctx, rego.EvalInput(toInput(in)))
	if err != nil {
		return Decision{}, fmt.Errorf("policy: eval: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return Decision{}, errors.New("policy: query returned no result")
	}
	doc, ok := rs[0].Expressions[0].Value.(map[string]any)
	if !ok {
		return Decision{}, fmt.Errorf("policy: unexpected result %T", rs[0].Expressions[0].Value)
	}
	allow, _ := doc["allow"].(bool)
	reasons := stringsOf(doc["deny"])
	if allow {
		return Decision{Allow: true}, nil
	}
	reason := "denied"
	if len(reasons) > 0 {
		reason = reasons[0]
	}
	return Decision{Allow: false, Reason: reason}, nil
}

// HealthCheck verifies the prepared policy evaluates and produces a decision.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	_, err := e.Authorize(ctx, Input{Actor: Subject{ID: "health", Role: "ADMIN"}, Action: ActionList})
	return err
}

func toInput(in Input) map[string]any {
	m := map[string]any{
		"actor":  map[string]any{"id": in.Actor.ID, "role": in.Actor.Role},
		"action": string(in.Action),
	}
	if in.Target != nil {
		m["target"] = map[string]any{"id": in.Target.ID, "role": in.Target.Role}
	}
	return m
}

// stringsOf returns the sorted strings of a Rego set or array result.
func stringsOf(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
