package redact

import (
	"bytes"
	"encoding/json"
	"io"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// MaskedFieldValue replaces the value of a redacted form field.
const MaskedFieldValue = "[MASKED_FIELD]"

// sensitiveFieldNames are form field keys redacted wherever they appear in
// a detected form block, regardless of form_type.
var sensitiveFieldNames = map[string]bool{
	"ssn":                 true,
	"social_security":     true,
	"date_of_birth":       true,
	"dob":                 true,
	"passport_number":     true,
	"drivers_license":     true,
	"credit_card_number":  true,
	"bank_account":        true,
	"bank_account_number": true,
	"routing_number":      true,
}

var formBlockPattern = regexp.MustCompile(`(?i)"?form_type"?\s*[:=]`)

// FormFieldPIIMasker redacts known-sensitive field values from structured
// form blocks embedded in extracted document text (e.g. an intake form's
// field extraction emitted inline as JSON or YAML by an upstream NER
// pass), while leaving every other field and the surrounding document
// text untouched.
type FormFieldPIIMasker struct{}

// Name returns the masker's registered identifier.
func (m *FormFieldPIIMasker) Name() string { return "form_field_pii" }

// AppliesTo performs a cheap substring check before attempting to parse.
func (m *FormFieldPIIMasker) AppliesTo(data string) bool {
	return formBlockPattern.MatchString(data)
}

// Mask detects JSON or YAML form blocks and redacts sensitive fields,
// returning the original text unchanged if neither parses.
func (m *FormFieldPIIMasker) Mask(data string) string {
	trimmed := strings.TrimSpace(data)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		if masked := m.maskJSON(data); masked != data {
			return masked
		}
	}
	if masked := m.maskYAML(data); masked != data {
		return masked
	}
	return data
}

func (m *FormFieldPIIMasker) maskYAML(data string) string {
	decoder := yaml.NewDecoder(strings.NewReader(data))
	var documents []map[string]any
	anyMasked := false

	for {
		var doc map[string]any
		err := decoder.Decode(&doc)
		if err == io.EOF {
			break
		}
		if err != nil {
			return data
		}
		if doc == nil {
			continue
		}
		if isFormBlock(doc) && maskFormFields(doc) {
			anyMasked = true
		}
		documents = append(documents, doc)
	}
	if !anyMasked || len(documents) == 0 {
		return data
	}

	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	for _, doc := range documents {
		if err := encoder.Encode(doc); err != nil {
			return data
		}
	}
	if err := encoder.Close(); err != nil {
		return data
	}

	result := strings.TrimRight(buf.String(), "\n")
	if strings.HasSuffix(data, "\n") {
		result += "\n"
	}
	return result
}

func (m *FormFieldPIIMasker) maskJSON(data string) string {
	var obj map[string]any
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		return data
	}
	if !isFormBlock(obj) || !maskFormFields(obj) {
		return data
	}

	result, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		return data
	}
	output := string(result)
	if strings.HasSuffix(data, "\n") {
		output += "\n"
	}
	return output
}

func isFormBlock(block map[string]any) bool {
	_, ok := block["form_type"]
	return ok
}

// maskFormFields blanks every sensitive field under block["fields"].
// Returns true if anything was redacted.
func maskFormFields(block map[string]any) bool {
	fields, ok := block["fields"].(map[string]any)
	if !ok {
		return false
	}
	masked := false
	for key := range fields {
		if sensitiveFieldNames[strings.ToLower(key)] {
			fields[key] = MaskedFieldValue
			masked = true
		}
	}
	return masked
}
