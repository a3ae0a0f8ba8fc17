package generator

import (
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// draftRuleSchemaJSON is the structured output schema the generator must
// conform to, per spec §6: a list of rule objects with rule_id/rule_name/
// description/policy_reference/applies_to_roles/code.
const draftRuleSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "array",
  "items": {
    "type": "object",
    "properties": {
      "rule_id": {"type": "string", "minLength": 1, "pattern": "^[a-z0-9_]+$"},
      "rule_name": {"type": "string", "minLength": 1},
      "description": {"type": "string"},
      "policy_reference": {"type": "string"},
      "applies_to_roles": {"type": "array", "items": {"type": "string"}},
      "code": {"type": "string", "minLength": 1}
    },
    "required": ["rule_id", "rule_name", "code"]
  }
}`

var compiledDraftSchema *jsonschema.Schema

func init() {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	const url = "https://rules.internal/schemas/draft_rule_list.schema.json"
	if err := c.AddResource(url, strings.NewReader(draftRuleSchemaJSON)); err != nil {
		panic("generator: invalid embedded draft schema: " + err.Error())
	}
	schema, err := c.Compile(url)
	if err != nil {
		panic("generator: failed to compile embedded draft schema: " + err.Error())
	}
	compiledDraftSchema = schema
}

// validateDraftPayload checks a decoded JSON value (expected to be a list of
// rule objects) against the structured output schema.
func validateDraftPayload(value any) error {
	return compiledDraftSchema.Validate(value)
}
