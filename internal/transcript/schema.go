package transcript

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// recordSchemaJSON is deliberately loose: only the message list is required,
// so legacy and externally produced records still load. It exists to catch
// genuinely corrupt files with a readable diagnostic instead of a zeroed
// session.
const recordSchemaJSON = `{
  "type": "object",
  "properties": {
    "timestamp": {"type": "string"},
    "turns": {"type": "integer", "minimum": 0},
    "message_count": {"type": "integer", "minimum": 0},
    "signatures": {"type": "array", "items": {"type": "object"}},
    "resumable": {"type": "boolean"},
    "messages": {"type": "array", "items": {"type": "object"}}
  },
  "required": ["messages"]
}`

var recordSchema = mustCompileRecordSchema()

func mustCompileRecordSchema() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("record.json", strings.NewReader(recordSchemaJSON)); err != nil {
		panic(err)
	}
	s, err := c.Compile("record.json")
	if err != nil {
		panic(err)
	}
	return s
}

// validateRecord checks raw JSON against the record schema.
func validateRecord(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	if err := recordSchema.Validate(v); err != nil {
		return fmt.Errorf("record schema validation failed: %w", err)
	}
	return nil
}
