package engine

import "context"

// Action is an admin-account management operation subject to policy.
type Action string

const (
	ActionList          Action = "list"
	ActionCreate        Action = "create"
	ActionResetPassword Action = "reset_password"
	ActionDelete        Action = "delete"
)

// Subject identifies an admin account in a policy input.
type Subject struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

// Input is the document handed to the policy as `input`. Target is nil for list and create.
type Input struct {
	Actor  Subject  `json:"actor"`
	Action Action   `json:"action"`
	Target *Subject `json:"target,omitempty"`
}

// Decision is the policy outcome. Reason is set when Allow is false.
type Decision struct {
	Allow  bool
	Reason string
}

// Evaluator decides admin-account management requests.
type Evaluator interface {
	Authorize(ctx context.Context, in Input) (Decision, error)
	HealthCheck(ctx context.Context) error
}
