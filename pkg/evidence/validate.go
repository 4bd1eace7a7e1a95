package evidence

import (
	"embed"
	"fmt"
	"sort"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

// Artifact kinds recognized by Validate.
const (
	ArtifactSummary  = "summary"
	ArtifactDebug    = "debug"
	ArtifactManifest = "manifest"
)

var schemaFiles = map[string]string{
	ArtifactSummary:  "schemas/summary.schema.json",
	ArtifactDebug:    "schemas/debug.schema.json",
	ArtifactManifest: "schemas/manifest.schema.json",
}

// ArtifactKinds lists the validatable artifact kinds in stable order.
func ArtifactKinds() []string {
	kinds := make([]string, 0, len(schemaFiles))
	for kind := range schemaFiles {
		kinds = append(kinds, kind)
	}

	sort.Strings(kinds)

	return kinds
}

// ValidationIssue is one schema violation in an artifact.
type ValidationIssue struct {
	Field       string
	Description string
}

// Validate checks a decoded artifact payload against the embedded
// schema for its kind. A nil issue slice with nil error means the
// artifact conforms.
func Validate(kind string, payload any) ([]ValidationIssue, error) {
	file, ok := schemaFiles[kind]
	if !ok {
		return nil, fmt.Errorf("evidence: unknown artifact kind %q", kind)
	}

	schemaBytes, err := schemaFS.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("evidence: load schema %s: %w", kind, err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaBytes),
		gojsonschema.NewGoLoader(payload),
	)
	if err != nil {
		return nil, fmt.Errorf("evidence: validate %s: %w", kind, err)
	}

	if result.Valid() {
		return nil, nil
	}

	issues := make([]ValidationIssue, 0, len(result.Errors()))
	for _, verr := range result.Errors() {
		issues = append(issues, ValidationIssue{
			Field:       verr.Field(),
			Description: verr.Description(),
		})
	}

	return issues, nil
}
