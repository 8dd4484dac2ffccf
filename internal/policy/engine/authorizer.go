// Package engine decides role-based access with OPA Rego policies.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
)

const adminQuery = "data.sessiongate.authz.allow_admin"

// DefaultPolicy grants admin access to active accounts with the admin role.
const DefaultPolicy = `package sessiongate.authz

default allow_admin := false

allow_admin if {
	input.user.role == "admin"
	input.user.status != "disabled"
}
`

// ErrNoResult is returned when the policy query yields no value.
var ErrNoResult = errors.New("policy: query returned no result")

// Subject is the caller an access decision is made for.
type Subject struct {
	UserID int64
	Role   string
	Status string
}

// Authorizer answers whether a subject may use admin routes. Any error means deny.
type Authorizer interface {
	IsAdmin(ctx context.Context, s Subject) (bool, error)
}

// OPAAuthorizer evaluates a compiled Rego policy in process.
type OPAAuthorizer struct {
	query rego.PreparedEvalQuery
}

// NewOPAAuthorizer compiles DefaultPolicy.
func NewOPAAuthorizer(ctx context.Context) (*OPAAuthorizer, error) {
	return NewOPAAuthorizerWithPolicy(ctx, DefaultPolicy)
}

// NewOPAAuthorizerWithPolicy compiles policy, which must define data.sessiongate.authz.allow_admin.
func NewOPAAuthorizerWithPolicy(ctx context.Context, policy string) (*OPAAuthorizer, error) {
	compiler, err := ast.CompileModules(map[string]string{"authz.rego": policy})
	if err != nil {
		return nil, fmt.Errorf("compile policy: %w", err)
	}
	q, err := rego.New(
		rego.Query(adminQuery),
		rego.Compiler(compiler),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare policy: %w", err)
	}
	return &OPAAuthorizer{query: q}, nil
}

// IsAdmin evaluates the policy for s.
func (a *OPAAuthorizer) IsAdmin(ctx context.Context, s Subject) (bool, error) {
	input := map[string]interface{}{
		"user": map[string]interface{}{
			"id":     s.UserID,
			"role":   s.Role,
			"status": s.Status,
		},
	}
	rs, err := a.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, fmt.Errorf("eval policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, ErrNoResult
	}
	allowed, ok := rs[0].Expressions[0].Value.(bool)
	if !ok {
		return false, fmt.Errorf("policy: allow_admin is %T, want bool", rs[0].Expressions[0].Value)
	}
	return allowed, nil
}

// HealthCheck verifies the compiled policy still evaluates. Does not touch the database.
func (a *OPAAuthorizer) HealthCheck(ctx context.Context) error {
	_, err := a.IsAdmin(ctx, Subject{Role: "user", Status: "active"})
	return err
}
