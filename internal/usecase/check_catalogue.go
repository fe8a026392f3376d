package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/i2y/restmcp/internal/domain"
)

// Problem is one defect found in a stored tool.
type Problem struct {
	Tool    string `json:"tool"`
	Message string `json:"message"`
}

// CheckReport summarises a catalogue check.
type CheckReport struct {
	Tools    int       `json:"tools"`
	Problems []Problem `json:"problems,omitempty"`
}

// OK reports whether the check found nothing.
func (r CheckReport) OK() bool { return len(r.Problems) == 0 }

// CheckCatalogueUseCase verifies the stored catalogue: name length and
// uniqueness, local reference closure of every schema, and that every schema
// compiles as JSON Schema.
type CheckCatalogueUseCase struct {
	repository ToolRepository
	logger     *slog.Logger
}

// NewCheckCatalogueUseCase creates a new CheckCatalogueUseCase.
func NewCheckCatalogueUseCase(repository ToolRepository, logger *slog.Logger) *CheckCatalogueUseCase {
	return &CheckCatalogueUseCase{
		repository: repository,
		logger:     logger.With("usecase", "CheckCatalogue"),
	}
}

// Execute runs every check over the stored tools.
func (uc *CheckCatalogueUseCase) Execute(ctx context.Context) (CheckReport, error) {
	tools, err := uc.repository.List(ctx)
	if err != nil {
		return CheckReport{}, fmt.Errorf("failed to list tools from repository: %w", err)
	}

	report := CheckReport{Tools: len(tools)}
	add := func(tool, format string, args ...any) {
		report.Problems = append(report.Problems, Problem{Tool: tool, Message: fmt.Sprintf(format, args...)})
	}

	seen := make(map[string]struct{}, len(tools))
	for _, t := range tools {
		if len(t.Name) > domain.MaxToolNameLength {
			add(t.Name, "name is %d characters long, limit is %d", len(t.Name), domain.MaxToolNameLength)
		}
		if _, dup := seen[t.Name]; dup {
			add(t.Name, "name is not unique")
		}
		seen[t.Name] = struct{}{}

		for _, label := range []string{"input", "return"} {
			s := t.InputSchema
			if label == "return" {
				s = t.ReturnSchema
			}
			if s == nil {
				continue
			}
			for _, ref := range DanglingRefs(s) {
				add(t.Name, "%s schema references %s which is not in its $defs", label, ref)
			}
			if external := externalRefs(s); len(external) > 0 {
				for _, ref := range external {
					add(t.Name, "%s schema references %s outside the schema", label, ref)
				}
				continue
			}
			if _, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(s)); err != nil {
				add(t.Name, "%s schema does not compile: %v", label, err)
			}
		}
	}

	for _, p := range report.Problems {
		uc.logger.Warn("Catalogue problem", slog.String("tool", p.Tool), slog.String("problem", p.Message))
	}
	uc.logger.Info("Catalogue checked", slog.Int("tools", report.Tools), slog.Int("problems", len(report.Problems)))
	return report, nil
}

// DanglingRefs returns every local "#/$defs/" reference under root whose
// first segment has no matching entry in root.Defs.
func DanglingRefs(root *domain.Schema) []string {
	var missing []string
	root.Walk(func(s *domain.Schema) {
		rest, ok := strings.CutPrefix(s.Ref, "#/$defs/")
		if !ok {
			return
		}
		name, _, _ := strings.Cut(rest, "/")
		if _, found := root.Defs[name]; !found {
			missing = append(missing, s.Ref)
		}
	})
	return missing
}

// externalRefs returns the references under root that do not point into the
// schema itself. The compiler would try to load them.
func externalRefs(root *domain.Schema) []string {
	var out []string
	root.Walk(func(s *domain.Schema) {
		if s.Ref != "" && !strings.HasPrefix(s.Ref, "#/$defs/") {
			out = append(out, s.Ref)
		}
	})
	return out
}
