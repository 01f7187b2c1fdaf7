package listing

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// ErrInvalidFilter reports a filter expression that does not compile to a boolean.
var ErrInvalidFilter = errors.New("listing: invalid filter")

type filterEnv struct {
	ID           string  `expr:"id"`
	Name         string  `expr:"name"`
	Database     string  `expr:"database"`
	Dialect      string  `expr:"dialect"`
	Tables       int     `expr:"tables"`
	Size         int     `expr:"size"`
	LastModified int64   `expr:"lastModified"`
	AgeHours     float64 `expr:"ageHours"`
	RemoteOnly   bool    `expr:"remoteOnly"`
}

// Filter is a compiled boolean expression over listing entries.
type Filter struct {
	expression string
	program    *vm.Program
}

// CompileFilter compiles expression. An empty expression matches everything.
func CompileFilter(expression string) (*Filter, error) {
	trimmed := strings.TrimSpace(expression)
	if trimmed == "" {
		return &Filter{}, nil
	}
	program, err := expr.Compile(trimmed, expr.Env(filterEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}
	return &Filter{expression: trimmed, program: program}, nil
}

// Match reports whether the entry satisfies the filter. Age is measured against now.
func (f *Filter) Match(entry Entry, now time.Time) (bool, error) {
	if f == nil || f.program == nil {
		return true, nil
	}
	env := filterEnv{
		ID:           entry.ID,
		Name:         entry.Name,
		Database:     string(entry.Database),
		Dialect:      entry.DialectName,
		Tables:       entry.Tables,
		Size:         entry.Size,
		LastModified: entry.LastModified.UnixMilli(),
		AgeHours:     now.Sub(entry.LastModified).Hours(),
		RemoteOnly:   entry.RemoteOnly,
	}
	result, err := expr.Run(f.program, env)
	if err != nil {
		return false, fmt.Errorf("listing: evaluate %q: %w", f.expression, err)
	}
	matched, _ := result.(bool)
	return matched, nil
}
