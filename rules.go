package draft

import (
	"errors"
	"fmt"
	"time"
)

var ErrNoEvaluator = errors.New("draft: evaluator not configured")

// Rule checks one form field with one expression. The expression runs with
// the working form flattened into scope plus form, items, field, value, now,
// args and metadata bindings. It must return a bool; false fails the field.
type Rule struct {
	Field   string
	Expr    string
	Message string
}

// RuleOption configures a RuleSet.
type RuleOption func(*RuleSet)

// RulesWithEvaluator selects the engine used to run rule expressions.
// Without it the set lazily builds an expr-lang evaluator.
func RulesWithEvaluator(evaluator Evaluator) RuleOption {
	return func(rs *RuleSet) {
		rs.evaluator = evaluator
	}
}

// RulesWithProgramCache registers a compiled-program cache used when the set
// builds its own evaluator. Without it the set keeps a bounded
// MemoryProgramCache so repeated saves reuse compiled programs.
func RulesWithProgramCache(cache ProgramCache) RuleOption {
	return func(rs *RuleSet) {
		rs.cache = cache
	}
}

// RulesWithFunctionRegistry exposes registry functions to rule expressions.
func RulesWithFunctionRegistry(registry *FunctionRegistry) RuleOption {
	return func(rs *RuleSet) {
		if registry == nil {
			return
		}
		rs.functions = registry.Clone()
	}
}

// RulesWithFunction registers fn under name for rule expressions.
func RulesWithFunction(name string, fn Function) RuleOption {
	return func(rs *RuleSet) {
		if rs.functions == nil {
			rs.functions = NewFunctionRegistry()
		}
		_ = rs.functions.Register(name, fn)
	}
}

// RuleSet runs field rules against the working values before each save.
type RuleSet struct {
	rules     []Rule
	evaluator Evaluator
	cache     ProgramCache
	functions *FunctionRegistry
}

// NewRuleSet constructs a rule set that evaluates rules in declaration order.
func NewRuleSet(rules []Rule, opts ...RuleOption) *RuleSet {
	rs := &RuleSet{rules: append([]Rule{}, rules...)}
	for _, opt := range opts {
		if opt != nil {
			opt(rs)
		}
	}
	return rs
}

// Rules returns a copy of the configured rules.
func (rs *RuleSet) Rules() []Rule {
	if rs == nil {
		return nil
	}
	return append([]Rule{}, rs.rules...)
}

// Validate evaluates every rule against form and items. Rules that evaluate
// to false are collected into a ValidationError. An expression that errors or
// returns a non-bool aborts with an EvaluationError since that is a broken
// rule, not invalid input.
func (rs *RuleSet) Validate(form map[string]any, items []map[string]any, logger RuleLogger) error {
	if rs == nil || len(rs.rules) == 0 {
		return nil
	}
	if logger == nil {
		logger = noopRuleLogger{}
	}
	evaluator, err := rs.resolveEvaluator()
	if err != nil {
		return err
	}
	engine := engineName(evaluator)

	var failed []FieldError
	for _, rule := range rs.rules {
		ctx := RuleContext{
			Field: rule.Field,
			Value: form[rule.Field],
			Form:  form,
			Items: items,
		}.withDefaultNow().withDefaultMaps()

		start := time.Now()
		result, evalErr := evaluator.Evaluate(ctx, rule.Expr)
		duration := time.Since(start)
		evalErr = wrapEvaluationError(engine, rule.Expr, ctx.fieldLabel(), evalErr)
		logger.LogRule(RuleLogEvent{
			Engine:   engine,
			Expr:     rule.Expr,
			Field:    ctx.fieldLabel(),
			Duration: duration,
			Err:      evalErr,
		})
		if evalErr != nil {
			return evalErr
		}

		ok, isBool := result.(bool)
		if !isBool {
			return wrapEvaluationError(engine, rule.Expr, ctx.fieldLabel(),
				fmt.Errorf("expression must return bool, got %T", result))
		}
		if ok {
			continue
		}
		message := rule.Message
		if message == "" {
			message = "invalid value"
		}
		failed = append(failed, FieldError{Field: rule.Field, Message: message})
	}

	if len(failed) == 0 {
		return nil
	}
	return &ValidationError{Fields: failed}
}

func (rs *RuleSet) resolveEvaluator() (Evaluator, error) {
	if rs.evaluator != nil {
		return rs.evaluator, nil
	}
	if rs.cache == nil {
		rs.cache = NewProgramCache(DefaultProgramCacheSize)
	}
	exprOpts := []ExprEvaluatorOption{ExprWithProgramCache(rs.cache)}
	if rs.functions != nil {
		exprOpts = append(exprOpts, ExprWithFunctionRegistry(rs.functions))
	}
	evaluator := NewExprEvaluator(exprOpts...)
	if evaluator == nil {
		return nil, ErrNoEvaluator
	}
	rs.evaluator = evaluator
	return evaluator, nil
}

func engineName(e Evaluator) string {
	if e == nil {
		return "unknown"
	}
	switch fmt.Sprintf("%T", e) {
	case "*draft.exprEvaluator":
		return "expr"
	case "*draft.celEvaluator":
		return "cel"
	case "*draft.jsEvaluator":
		return "js"
	default:
		return "custom"
	}
}
