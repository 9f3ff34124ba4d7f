package scoring

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xeipuuv/gojsonschema"

	"github.com/jonathan/course-illustrator/internal/types"
)

// CivilizationTable holds the word lists for one civilization tag. Mismatch
// terms trigger the heavy penalty; allow terms earn the per-term bonus.
type CivilizationTable struct {
	MismatchTerms []string `json:"mismatch_terms"`
	AllowTerms    []string `json:"allow_terms"`
}

// Tables maps civilization tags to their word lists. Tables are configuration
// data: new tags or terms extend scoring without changing the algorithm.
type Tables map[types.CivilizationHint]CivilizationTable

// tablesSchema validates a civilization table file before it replaces the
// embedded defaults. A malformed table must never silently weaken scoring.
const tablesSchema = `{
  "type": "object",
  "additionalProperties": {
    "type": "object",
    "properties": {
      "mismatch_terms": {"type": "array", "items": {"type": "string", "minLength": 1}},
      "allow_terms": {"type": "array", "items": {"type": "string", "minLength": 1}}
    },
    "required": ["mismatch_terms", "allow_terms"],
    "additionalProperties": false
  }
}`

// DefaultTables returns the built-in civilization word lists.
func DefaultTables() Tables {
	return Tables{
		types.CivilizationEgypt: {
			MismatchTerms: []string{
				"thor", "mjolnir", "norse", "viking", "odin", "loki", "valhalla",
				"zeus", "parthenon", "acropolis", "colosseum", "gladiator", "caesar", "toga",
			},
			AllowTerms: []string{
				"pharaoh", "hieroglyphics", "hieroglyph", "pyramid", "giza", "sphinx",
				"nile", "sarcophagus", "anubis", "tutankhamun", "papyrus",
			},
		},
		types.CivilizationRome: {
			MismatchTerms: []string{
				"thor", "mjolnir", "norse", "viking", "odin", "loki", "valhalla",
				"pharaoh", "pyramid", "hieroglyph", "sphinx", "zeus", "parthenon", "acropolis",
			},
			AllowTerms: []string{
				"colosseum", "gladiator", "caesar", "legion", "aqueduct", "forum",
				"toga", "senate", "centurion", "pantheon",
			},
		},
		types.CivilizationGreek: {
			MismatchTerms: []string{
				"thor", "mjolnir", "norse", "viking", "odin", "loki", "valhalla",
				"pharaoh", "pyramid", "hieroglyph", "sphinx", "colosseum", "gladiator", "caesar",
			},
			AllowTerms: []string{
				"parthenon", "acropolis", "zeus", "athena", "hoplite", "olympus",
				"amphora", "sparta", "athens", "oracle",
			},
		},
	}
}

// LoadTables reads civilization word lists from a JSON file, validating the
// document against the embedded schema first.
func LoadTables(path string) (Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tables file %s: %w", path, err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(tablesSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to validate tables file %s: %w", path, err)
	}
	if !result.Valid() {
		return nil, &TableError{Path: path, Problems: describeProblems(result)}
	}

	var tables Tables
	if err := json.Unmarshal(data, &tables); err != nil {
		return nil, fmt.Errorf("failed to parse tables file %s: %w", path, err)
	}
	return tables, nil
}

// TableError reports schema violations in a civilization table file.
type TableError struct {
	Path     string
	Problems []string
}

func (e *TableError) Error() string {
	return fmt.Sprintf("invalid civilization tables %s: %d problem(s)", e.Path, len(e.Problems))
}

func describeProblems(result *gojsonschema.Result) []string {
	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
	}
	return problems
}
