// Package reproduce reconstructs a complete, re-executable record of a
// pipeline invocation: a standalone Go program that redefines the
// orchestration procedure and every stage implementation used, supplies the
// literal extent, and re-issues the original invocation.
package reproduce

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"

	"github.com/nicheflow/nicheflow/internal/errors"
	"github.com/nicheflow/nicheflow/pkg/geo"
	"github.com/nicheflow/nicheflow/pkg/stage"
)

// ErrSourceUnavailable is the sentinel wrapped when a stage implementation's
// source cannot be retrieved.
var ErrSourceUnavailable = stderrors.New("source unavailable")

// Constructor names the emitted script binds each stage definition to. A
// stage's source declaration must declare the constructor for its kind; the
// invocation expression references these names.
var constructorNames = map[stage.Kind]string{
	stage.KindOccurrence: "newOccurrenceStage",
	stage.KindCovariate:  "newCovariateStage",
	stage.KindProcess:    "newProcessStage",
	stage.KindModel:      "newModelStage",
	stage.KindMap:        "newMapStage",
}

// ConstructorName returns the fixed constructor identifier for a stage kind.
func ConstructorName(kind stage.Kind) string {
	return constructorNames[kind]
}

// Record emits the standalone reproduction script for one invocation.
//
// orchestration is the source form of the orchestration procedure itself;
// invocation is the original invocation expression, re-emitted verbatim with
// its result bound to the fixed identifier "result". Definitions appear in
// declaration-before-reference order: the orchestration procedure, then the
// five stage definitions (occurrence, covariate, process, model, map), then
// the literal extent bound to its call-site name, then the invocation.
//
// The output is deterministic: identical inputs yield byte-identical text.
// If any stage's source cannot be retrieved, Record fails with a
// SourceUnavailable error naming the stage and emits nothing.
func Record(orchestration stage.SourceForm, extent geo.Extent, invocation string, set stage.Set) (string, error) {
	type stageSource struct {
		kind stage.Kind
		form stage.SourceForm
	}

	ordered := []struct {
		kind stage.Kind
		impl any
	}{
		{stage.KindOccurrence, set.Occurrence},
		{stage.KindCovariate, set.Covariate},
		{stage.KindProcess, set.Process},
		{stage.KindModel, set.Model},
		{stage.KindMap, set.Mapper},
	}

	sources := make([]stageSource, 0, len(ordered))
	for _, s := range ordered {
		name := stageName(s.impl)
		sourcer, ok := s.impl.(stage.Sourcer)
		if !ok {
			return "", sourceUnavailable(s.kind, name, stage.ErrNoSource)
		}
		form, err := sourcer.Source()
		if err != nil {
			return "", sourceUnavailable(s.kind, name, err)
		}
		if !strings.Contains(form.Decl, "func "+constructorNames[s.kind]+"(") {
			return "", errors.Newf("%s stage %q source does not declare %s", s.kind, name, constructorNames[s.kind]).
				Component("reproduce").
				Category(errors.CategoryValidation).
				StageContext(string(s.kind), name).
				Build()
		}
		sources = append(sources, stageSource{kind: s.kind, form: form})
	}

	var sb strings.Builder
	sb.WriteString("// Code generated by nicheflow; a standalone re-execution record of one\n")
	sb.WriteString("// pipeline run. Build and run this file to reproduce the original result.\n")
	sb.WriteString("package main\n\n")

	// Imports: the fixed runtime set plus whatever the emitted declarations
	// reference, deduplicated and grouped stdlib-first.
	imports := []string{"context", "fmt", "os", "github.com/nicheflow/nicheflow/pkg/geo"}
	imports = append(imports, orchestration.Imports...)
	for _, s := range sources {
		imports = append(imports, s.form.Imports...)
	}
	writeImports(&sb, imports)

	sb.WriteString(strings.TrimRight(orchestration.Decl, "\n"))
	sb.WriteString("\n\n")
	for _, s := range sources {
		sb.WriteString(strings.TrimRight(s.form.Decl, "\n"))
		sb.WriteString("\n\n")
	}

	sb.WriteString("// The literal extent of the original invocation, bound to its call-site name.\n")
	sb.WriteString("var extent = " + extent.GoLiteral() + "\n\n")

	sb.WriteString("func main() {\n")
	sb.WriteString("\tctx := context.Background()\n")
	sb.WriteString("\tresult, err := " + invocation + "\n")
	sb.WriteString("\tif err != nil {\n")
	sb.WriteString("\t\tfmt.Fprintln(os.Stderr, err)\n")
	sb.WriteString("\t\tos.Exit(1)\n")
	sb.WriteString("\t}\n")
	sb.WriteString("\tfmt.Printf(\"reproduced pipeline run over %s: %d sample rows\\n\", extent, result.Samples.Len())\n")
	sb.WriteString("}\n")

	return sb.String(), nil
}

func writeImports(sb *strings.Builder, imports []string) {
	seen := map[string]bool{}
	var stdlib, module []string
	for _, imp := range imports {
		if seen[imp] {
			continue
		}
		seen[imp] = true
		if strings.Contains(imp, ".") {
			module = append(module, imp)
		} else {
			stdlib = append(stdlib, imp)
		}
	}
	sort.Strings(stdlib)
	sort.Strings(module)

	sb.WriteString("import (\n")
	for _, imp := range stdlib {
		fmt.Fprintf(sb, "\t%q\n", imp)
	}
	if len(module) > 0 {
		sb.WriteString("\n")
		for _, imp := range module {
			fmt.Fprintf(sb, "\t%q\n", imp)
		}
	}
	sb.WriteString(")\n\n")
}

func stageName(impl any) string {
	if named, ok := impl.(interface{ Name() string }); ok && named != nil {
		return named.Name()
	}
	return ""
}

func sourceUnavailable(kind stage.Kind, name string, err error) error {
	return errors.New(fmt.Errorf("%w: %s stage %q has no retrievable source: %w", ErrSourceUnavailable, kind, name, err)).
		Component("reproduce").
		Category(errors.CategorySourceUnavailable).
		StageContext(string(kind), name).
		Build()
}
