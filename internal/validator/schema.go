package validator

import (
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// resultSchemaJSON is the JSON Schema for RuleExecutionResult from spec §6:
// a mapping with a required boolean allowed and optional reason/policy_ref
// strings. A rule whose output fails this schema is a ContractViolation.
const resultSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "allowed": {"type": "boolean"},
    "reason": {"type": "string"},
    "policy_ref": {"type": "string"}
  },
  "required": ["allowed"],
  "additionalProperties": true
}`

var compiledResultSchema *jsonschema.Schema

func init() {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	const url = "https://rules.internal/schemas/rule_execution_result.schema.json"
	if err := c.AddResource(url, strings.NewReader(resultSchemaJSON)); err != nil {
		panic("validator: invalid embedded result schema: " + err.Error())
	}
	schema, err := c.Compile(url)
	if err != nil {
		panic("validator: failed to compile embedded result schema: " + err.Error())
	}
	compiledResultSchema = schema
}

// validateResultContract checks a decoded rule-output value against the
// RuleExecutionResult schema. Returns a non-nil error describing the first
// violation when the value does not satisfy the contract.
func validateResultContract(value any) error {
	return compiledResultSchema.Validate(value)
}
