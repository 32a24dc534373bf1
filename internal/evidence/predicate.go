package evidence

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// newEnv declares the single variable predicates can see.
func newEnv() (*cel.Env, error) {
	return cel.NewEnv(cel.Variable("tools", cel.ListType(cel.StringType)))
}

// compileWhen type-checks a pack's when expression and stores its program.
func compileWhen(env *cel.Env, p *Pack) error {
	if p.When == "" {
		return nil
	}
	ast, iss := env.Compile(p.When)
	if iss != nil && iss.Err() != nil {
		return fmt.Errorf("when: %w", iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return fmt.Errorf("when: expression must be bool, got %s", ast.OutputType())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return fmt.Errorf("when: %w", err)
	}
	p.program = prg
	return nil
}

// Matches reports whether the pack fires for the given tool ids. Every id in
// Requires must be present and When, if set, must evaluate to true. A pack
// with no condition never matches. Evaluation errors count as no match.
func (p *Pack) Matches(tools []string) bool {
	if !p.HasPredicate() {
		return false
	}

	present := make(map[string]bool, len(tools))
	for _, t := range tools {
		present[t] = true
	}
	for _, req := range p.Requires {
		if !present[req] {
			return false
		}
	}

	if p.When == "" {
		return true
	}
	if p.program == nil {
		return false
	}
	if tools == nil {
		tools = []string{}
	}
	out, _, err := p.program.Eval(map[string]any{"tools": tools})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
