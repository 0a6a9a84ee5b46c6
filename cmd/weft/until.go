package main

import (
	"fmt"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

// untilCondition is a compiled --until expression. It sees:
//
//	status      int    HTTP status code
//	body        any    decoded JSON body, or the raw string if it is not JSON
//	elapsed_ms  int64  time since polling started
type untilCondition struct {
	program    *exprvm.Program
	expression string
}

func compileUntil(expression string) (*untilCondition, error) {
	program, err := exprlang.Compile(expression,
		exprlang.Env(probeEnv(probe{})),
		exprlang.AsBool(),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid --until expression: %w", err)
	}
	return &untilCondition{program: program, expression: expression}, nil
}

func (u *untilCondition) Match(p probe) (bool, error) {
	out, err := exprlang.Run(u.program, probeEnv(p))
	if err != nil {
		return false, fmt.Errorf("evaluating %q: %w", u.expression, err)
	}
	return out.(bool), nil
}

func probeEnv(p probe) map[string]any {
	return map[string]any{
		"status":     p.Status,
		"body":       p.Body,
		"elapsed_ms": p.Elapsed.Milliseconds(),
	}
}
