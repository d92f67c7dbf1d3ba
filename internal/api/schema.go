package api

import (
	"fmt"
	"strings"
	"sync"

	"github.com/bytedance/sonic"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// schemaAPI decodes numbers as json.Number so integer checks see the exact value.
var schemaAPI = sonic.Config{UseNumber: true}.Froze()

const idSchema = `{"type": ["string", "integer"]}`

var statusListSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "array",
	"items": {
		"type": "object",
		"required": ["id", "name"],
		"properties": {
			"id": ` + idSchema + `,
			"name": {"type": "string"},
			"slug": {"type": ["string", "null"]},
			"isFinal": {"type": ["boolean", "null"]},
			"rank": {"type": ["integer", "null"]}
		}
	}
}`

var taskListSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "array",
	"items": {
		"type": "object",
		"required": ["id"],
		"properties": {
			"id": ` + idSchema + `,
			"title": {"type": ["string", "null"]},
			"statusId": {"type": ["string", "integer", "null"]},
			"status": {"type": ["string", "object", "null"]},
			"boardDate": {"type": ["string", "null"]},
			"dueDate": {"type": ["string", "null"]},
			"assignees": {"type": ["array", "null"]},
			"dependencies": {
				"type": ["array", "null"],
				"items": {
					"type": "object",
					"required": ["dependsOnTaskId"],
					"properties": {
						"dependsOnTaskId": ` + idSchema + `,
						"dependsOnTask": {"type": ["object", "null"]}
					}
				}
			}
		}
	}
}`

type schemas struct {
	once     sync.Once
	err      error
	statuses *jsonschema.Schema
	tasks    *jsonschema.Schema
}

var payloadSchemas schemas

func (s *schemas) load() error {
	s.once.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("https://taskboard.invalid/schemas/statuses.json", strings.NewReader(statusListSchema)); err != nil {
			s.err = err
			return
		}
		if err := compiler.AddResource("https://taskboard.invalid/schemas/tasks.json", strings.NewReader(taskListSchema)); err != nil {
			s.err = err
			return
		}
		if s.statuses, s.err = compiler.Compile("https://taskboard.invalid/schemas/statuses.json"); s.err != nil {
			return
		}
		s.tasks, s.err = compiler.Compile("https://taskboard.invalid/schemas/tasks.json")
	})
	return s.err
}

// validate checks raw against the schema for resource ("statuses" or "tasks").
func validate(resource string, raw []byte) error {
	if err := payloadSchemas.load(); err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	schema := payloadSchemas.tasks
	if resource == "statuses" {
		schema = payloadSchemas.statuses
	}
	var doc any
	if err := schemaAPI.Unmarshal(raw, &doc); err != nil {
		return err
	}
	err := schema.Validate(doc)
	if err == nil {
		return nil
	}
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err
	}
	out := &SchemaError{Resource: resource}
	collectProblems(out, ve)
	return out
}

func collectProblems(out *SchemaError, ve *jsonschema.ValidationError) {
	if ve == nil {
		return
	}
	if len(ve.Causes) == 0 {
		loc := ve.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		out.Problems = append(out.Problems, loc+": "+ve.Message)
		return
	}
	for _, c := range ve.Causes {
		collectProblems(out, c)
	}
}
