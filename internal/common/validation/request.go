// internal/common/validation/request.go
package validation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// blueprintRequestSchema validates the POST /blueprints payload before any
// provider quota is spent on it.
const blueprintRequestSchema = `{
	"type": "object",
	"properties": {
		"keyword": {
			"type": "string",
			"minLength": 1,
			"maxLength": 512
		},
		"options": {
			"type": "object",
			"properties": {
				"result_count":  {"type": "integer", "minimum": 1, "maximum": 20},
				"force_rebuild": {"type": "boolean"},
				"own_content":   {"type": "string", "maxLength": 200000},
				"notify_email":  {"type": "string", "format": "email", "maxLength": 254},
				"notify_phone":  {"type": "string", "pattern": "^\\+?[0-9]{7,15}$"}
			},
			"additionalProperties": false
		}
	},
	"required": ["keyword"],
	"additionalProperties": false
}`

var requestSchema = gojsonschema.NewStringLoader(blueprintRequestSchema)

// ValidationResult reports schema violations found in a request body.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// ValidateBlueprintRequest validates a raw JSON request body against the
// blueprint request schema.
func ValidateBlueprintRequest(body []byte) (*ValidationResult, error) {
	result, err := gojsonschema.Validate(requestSchema, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	if result.Valid() {
		return &ValidationResult{Valid: true}, nil
	}

	errs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		errs = append(errs, fmt.Sprintf("%s: %s", e.Field(), e.Description()))
	}
	return &ValidationResult{Valid: false, Errors: errs}, nil
}

// Summary renders the violation list as a single detail string.
func (r *ValidationResult) Summary() string {
	return strings.Join(r.Errors, "; ")
}
