package engine

import (
	"fmt"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"catering-backend/internal/metadata"
)

// CompileRules compiles every registered rule so that a broken expression
// fails at startup instead of on the first write.
func CompileRules(reg *metadata.Registry) error {
	for _, entity := range reg.ListEntities() {
		for _, rule := range reg.GetRules(entity.Name) {
			program, err := expr.Compile(rule.Expression, expr.AsBool())
			if err != nil {
				return fmt.Errorf("compile rule for %s.%s: %w", rule.Entity, rule.Field, err)
			}
			rule.Compiled = program
		}
	}
	return nil
}

// EvaluateRules runs the entity's rules against the merged record. A rule
// whose expression is true is reported as a validation error.
func EvaluateRules(reg *metadata.Registry, entity *metadata.Entity, record, old map[string]any, action string) []ErrorDetail {
	rules := reg.GetRules(entity.Name)
	if len(rules) == 0 {
		return nil
	}

	env := map[string]any{
		"record": record,
		"old":    old,
		"action": action,
		"today":  time.Now().Format(isoDateLayout),
	}

	var errs []ErrorDetail
	for _, rule := range rules {
		if detail := evaluateRule(rule, env); detail != nil {
			errs = append(errs, *detail)
		}
	}
	return errs
}

func evaluateRule(rule *metadata.Rule, env map[string]any) *ErrorDetail {
	program, ok := rule.Compiled.(*vm.Program)
	if !ok {
		var err error
		program, err = expr.Compile(rule.Expression, expr.AsBool())
		if err != nil {
			return &ErrorDetail{Field: rule.Field, Rule: "expression", Message: fmt.Sprintf("invalid rule: %v", err)}
		}
		rule.Compiled = program
	}

	out, err := expr.Run(program, env)
	if err != nil {
		return &ErrorDetail{Field: rule.Field, Rule: "expression", Message: fmt.Sprintf("rule evaluation failed: %v", err)}
	}
	if violated, _ := out.(bool); violated {
		return &ErrorDetail{Field: rule.Field, Rule: "expression", Message: rule.Message}
	}
	return nil
}
