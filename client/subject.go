package client

import "encoding/json"

// Subject is the authenticated principal carried inside a verified access
// token: a type naming the schema and the schema-validated properties.
type Subject struct {
	Type       string          `json:"type"`
	Properties json.RawMessage `json:"properties"`
}

// SubjectSchema validates the properties of one subject type. The validation
// mechanism is opaque to the client; implementations may wrap any schema
// library. Returned errors are surfaced as InvalidSubjectError issues.
type SubjectSchema interface {
	Validate(properties json.RawMessage) error
}

// SchemaFunc adapts a plain function to SubjectSchema.
type SchemaFunc func(properties json.RawMessage) error

// Validate implements SubjectSchema.
func (f SchemaFunc) Validate(properties json.RawMessage) error { return f(properties) }

// SubjectSchemas maps a subject type to its schema.
type SubjectSchemas map[string]SubjectSchema
