package opt

import (
	"sort"

	"github.com/orizon-lang/iris/internal/errors"
	"github.com/orizon-lang/iris/internal/ir"
)

// Pass is one named function-level optimization. It returns how many
// instructions it changed or removed.
type Pass func(f *ir.Function) int

var passes = map[string]Pass{
	"localopt": LocalOpt,
	"algsimp":  func(f *ir.Function) int { return AlgSimp(f, DefaultRules) },
	"tdce":     TDCE,
}

// DefaultSequence is the full optimizer sequence.
var DefaultSequence = []string{"localopt", "algsimp", "tdce"}

// Optimize runs the full optimizer sequence.
func Optimize(f *ir.Function) {
	LocalOpt(f)
	AlgSimp(f, DefaultRules)
	TDCE(f)
}

// Run applies the named passes in order and returns the change count of
// each.
func Run(f *ir.Function, names []string) (map[string]int, error) {
	counts := make(map[string]int, len(names))

	for _, name := range names {
		p, ok := passes[name]
		if !ok {
			return counts, errors.InvalidConfig("passes", "unknown optimization pass %q", name)
		}

		counts[name] += p(f)
	}

	return counts, nil
}

// Names lists the registered passes.
func Names() []string {
	out := make([]string, 0, len(passes))
	for name := range passes {
		out = append(out, name)
	}

	sort.Strings(out)

	return out
}
