package pipeline

import (
	"fmt"
	"strings"

	"github.com/nicheflow/nicheflow/pkg/reproduce"
	"github.com/nicheflow/nicheflow/pkg/stage"
)

// The orchestration procedure emitted into reproduction scripts. It is a
// named procedure delegating to Run so the reproduced execution path is
// byte-identical with the original one, including contract validation.
const orchestrationDecl = `// runPipeline invokes the five stages in dependency order and assembles the
// combined result bundle.
func runPipeline(ctx context.Context, extent geo.Extent, set stage.Set) (*pipeline.Result, error) {
	return pipeline.Run(ctx, extent, set)
}`

// orchestrationSource returns the orchestration procedure's source form.
func orchestrationSource() stage.SourceForm {
	return stage.SourceForm{
		Imports: []string{
			"github.com/nicheflow/nicheflow/pkg/pipeline",
			"github.com/nicheflow/nicheflow/pkg/stage",
		},
		Decl: orchestrationDecl,
	}
}

// invocationExpression renders the invocation as issued at the call site,
// composing the stage set from the fixed per-kind constructor names.
func invocationExpression() string {
	fields := []struct {
		field string
		kind  stage.Kind
	}{
		{"Occurrence", stage.KindOccurrence},
		{"Covariate", stage.KindCovariate},
		{"Process", stage.KindProcess},
		{"Model", stage.KindModel},
		{"Mapper", stage.KindMap},
	}

	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = fmt.Sprintf("%s: %s()", f.field, reproduce.ConstructorName(f.kind))
	}
	return "runPipeline(ctx, extent, stage.Set{" + strings.Join(parts, ", ") + "})"
}
