package policy

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// Validator handles threshold policy validation.
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator creates a new validator with the given schema file.
func NewValidator(schemaPath string) (*Validator, error) {
	compiler := jsonschema.NewCompiler()

	schema, err := compiler.Compile(schemaPath)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	return &Validator{schema: schema}, nil
}

// ValidateFile loads and validates a single policy file.
func (v *Validator) ValidateFile(filePath string) []ValidationError {
	pf, err := LoadFile(filePath)
	if err != nil {
		return []ValidationError{{
			File:    filePath,
			Message: fmt.Sprintf("failed to parse YAML: %v", err),
		}}
	}

	errors := v.validateSchema(filePath, pf)
	errors = append(errors, validateExtraRules(filePath, pf)...)
	return errors
}

// ValidateDirectory loads and validates all policy files in a directory.
func (v *Validator) ValidateDirectory(dirPath string) []ValidationError {
	files, loadErrors := LoadFromDirectory(dirPath)

	var allErrors []ValidationError
	allErrors = append(allErrors, loadErrors...)

	for _, fwp := range files {
		allErrors = append(allErrors, v.validateSchema(fwp.Path, fwp.File)...)
		allErrors = append(allErrors, validateExtraRules(fwp.Path, fwp.File)...)
	}

	return allErrors
}

// validateSchema validates a single policy file against the JSON schema.
func (v *Validator) validateSchema(file string, pf *File) []ValidationError {
	var errors []ValidationError

	// Round-trip through YAML to get plain maps/slices for schema validation
	yamlBytes, err := yaml.Marshal(pf)
	if err != nil {
		errors = append(errors, ValidationError{
			File:    file,
			Message: fmt.Sprintf("failed to marshal policy: %v", err),
		})
		return errors
	}

	var jsonData interface{}
	if err := yaml.Unmarshal(yamlBytes, &jsonData); err != nil {
		errors = append(errors, ValidationError{
			File:    file,
			Message: fmt.Sprintf("failed to convert to JSON: %v", err),
		})
		return errors
	}

	if err := v.schema.Validate(jsonData); err != nil {
		if validationErr, ok := err.(*jsonschema.ValidationError); ok {
			errors = append(errors, extractSchemaErrors(file, validationErr)...)
		} else {
			errors = append(errors, ValidationError{
				File:    file,
				Message: err.Error(),
			})
		}
	}

	return errors
}

// extractSchemaErrors converts JSON schema validation errors to ValidationErrors
func extractSchemaErrors(file string, err *jsonschema.ValidationError) []ValidationError {
	var errors []ValidationError

	path := strings.Join(err.InstanceLocation, ".")
	if path == "" {
		path = "(root)"
	}

	errors = append(errors, ValidationError{
		File:    file,
		Path:    path,
		Message: err.Error(),
	})

	for _, cause := range err.Causes {
		errors = append(errors, extractSchemaErrors(file, cause)...)
	}

	return errors
}

// validateExtraRules applies rules the JSON schema cannot express.
func validateExtraRules(file string, pf *File) []ValidationError {
	var errors []ValidationError

	window, err := ParseDuration(pf.Spec.Window)
	if err != nil {
		errors = append(errors, ValidationError{
			File:    file,
			Path:    "spec.window",
			Message: fmt.Sprintf("invalid duration: %v", err),
		})
	}

	ttl, err := ParseDuration(pf.Spec.BlockTTL)
	if err != nil {
		errors = append(errors, ValidationError{
			File:    file,
			Path:    "spec.blockTTL",
			Message: fmt.Sprintf("invalid duration: %v", err),
		})
	}

	// A block shorter than the observation window expires before the window
	// that produced it has even rolled over.
	if window > 0 && ttl > 0 && ttl < window {
		errors = append(errors, ValidationError{
			File: file,
			Path: "spec.blockTTL",
			Message: fmt.Sprintf("blockTTL (%s) must be >= window (%s)",
				pf.Spec.BlockTTL, pf.Spec.Window),
		})
	}

	seen := make(map[int]struct{}, len(pf.Spec.DisconnectStatus))
	for i, code := range pf.Spec.DisconnectStatus {
		if _, dup := seen[code]; dup {
			errors = append(errors, ValidationError{
				File:    file,
				Path:    fmt.Sprintf("spec.disconnectStatus[%d]", i),
				Message: fmt.Sprintf("duplicate status code %d", code),
			})
		}
		seen[code] = struct{}{}
	}

	return errors
}
