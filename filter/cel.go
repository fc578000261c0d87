package filter

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/hugolhafner/kscan/logger"
	"github.com/hugolhafner/kscan/record"
)

type celConfig struct {
	logger logger.Logger
}

type CELOption func(*celConfig)

// WithCELLogger logs evaluation failures.
func WithCELLogger(l logger.Logger) CELOption {
	return func(c *celConfig) {
		c.logger = l
	}
}

// CEL compiles a boolean CEL expression into a Predicate. The expression sees
//
//	key, value          string
//	headers             map(string, string)
//	partition, offset   int
//	timestamp_ms        int
//	value_json          dyn (parsed value, null if it is not JSON)
//
// An empty expression accepts everything. Messages for which evaluation fails
// or yields a non-bool are rejected.
func CEL(expr string, opts ...CELOption) (Predicate, error) {
	cfg := celConfig{logger: logger.NewNoopLogger()}
	for _, opt := range opts {
		opt(&cfg)
	}

	expr = strings.TrimSpace(expr)
	if expr == "" {
		return All(), nil
	}

	env, err := cel.NewEnv(
		cel.Variable("key", cel.StringType),
		cel.Variable("value", cel.StringType),
		cel.Variable("headers", cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable("partition", cel.IntType),
		cel.Variable("offset", cel.IntType),
		cel.Variable("timestamp_ms", cel.IntType),
		cel.Variable("value_json", cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}

	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("compile filter: %w", iss.Err())
	}
	if t := ast.OutputType(); !t.IsExactType(cel.BoolType) && !t.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("filter must evaluate to bool, got %s", t)
	}

	prog, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build filter program: %w", err)
	}

	return func(msg record.Message) bool {
		headers := msg.Headers
		if headers == nil {
			headers = map[string]string{}
		}

		var parsed any
		if msg.Value != "" {
			_ = json.Unmarshal([]byte(msg.Value), &parsed)
		}

		out, _, err := prog.Eval(
			map[string]any{
				"key":          msg.Key,
				"value":        msg.Value,
				"headers":      headers,
				"partition":    int64(msg.Partition),
				"offset":       msg.Offset,
				"timestamp_ms": msg.Timestamp.UnixMilli(),
				"value_json":   parsed,
			},
		)
		if err != nil {
			cfg.logger.Debug(
				"Filter evaluation failed, rejecting message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
			return false
		}

		b, ok := out.Value().(bool)
		return ok && b
	}, nil
}
