package draft

import "time"

// SessionLogEvent describes one lifecycle transition for logging.
type SessionLogEvent struct {
	Op       string
	EntityID string
	Dirty    bool
	Duration time.Duration
	Err      error
}

// SessionLogger records session lifecycle events.
type SessionLogger interface {
	LogSession(SessionLogEvent)
}

// SessionLoggerFunc adapts a function to SessionLogger.
type SessionLoggerFunc func(SessionLogEvent)

// LogSession implements SessionLogger.
func (f SessionLoggerFunc) LogSession(event SessionLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopSessionLogger struct{}

func (noopSessionLogger) LogSession(SessionLogEvent) {}

// WithLogger attaches a session logger.
func WithLogger(logger SessionLogger) Option {
	return func(cfg *sessionSettings) {
		if logger == nil {
			cfg.logger = noopSessionLogger{}
			return
		}
		cfg.logger = logger
	}
}

// RuleLogEvent describes a rule evaluation attempt for logging.
type RuleLogEvent struct {
	Engine   string
	Expr     string
	Field    string
	Duration time.Duration
	Err      error
}

// RuleLogger records rule evaluation events.
type RuleLogger interface {
	LogRule(RuleLogEvent)
}

// RuleLoggerFunc adapts a function to RuleLogger.
type RuleLoggerFunc func(RuleLogEvent)

// LogRule implements RuleLogger.
func (f RuleLoggerFunc) LogRule(event RuleLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopRuleLogger struct{}

func (noopRuleLogger) LogRule(RuleLogEvent) {}

// WithRuleLogger attaches a logger for rule evaluations during Save.
func WithRuleLogger(logger RuleLogger) Option {
	return func(cfg *sessionSettings) {
		if logger == nil {
			cfg.ruleLogger = noopRuleLogger{}
			return
		}
		cfg.ruleLogger = logger
	}
}
