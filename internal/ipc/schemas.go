package ipc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const submitActionSchema = `{
	"type": "object",
	"required": ["kind"],
	"additionalProperties": false,
	"properties": {
		"id":           {"type": "string", "minLength": 1},
		"kind":         {"type": "string", "enum": ["follow", "collect"]},
		"handle":       {"type": "string"},
		"profile_id":   {"type": "string"},
		"submitted_at": {"type": "integer"}
	}
}`

const markOpenedSchema = `{
	"type": "object",
	"required": ["timestamp"],
	"additionalProperties": false,
	"properties": {
		"timestamp": {"type": "integer", "minimum": 1}
	}
}`

const closeNotificationSchema = `{
	"type": "object",
	"required": ["by_user"],
	"additionalProperties": false,
	"properties": {
		"by_user": {"type": "boolean"}
	}
}`

const publicationConfirmedSchema = `{
	"type": "object",
	"required": ["publication_id"],
	"additionalProperties": false,
	"properties": {
		"publication_id": {"type": "string", "minLength": 1},
		"kind":           {"type": "string"}
	}
}`

type schemas struct {
	submitAction         *jsonschema.Schema
	markOpened           *jsonschema.Schema
	closeNotification    *jsonschema.Schema
	publicationConfirmed *jsonschema.Schema
}

func compileSchemas() (*schemas, error) {
	compiler := jsonschema.NewCompiler()
	add := func(name, raw string) error {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader([]byte(raw)))
		if err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
		return compiler.AddResource(name, doc)
	}
	if err := add("submit_action.json", submitActionSchema); err != nil {
		return nil, err
	}
	if err := add("mark_opened.json", markOpenedSchema); err != nil {
		return nil, err
	}
	if err := add("close_notification.json", closeNotificationSchema); err != nil {
		return nil, err
	}
	if err := add("publication_confirmed.json", publicationConfirmedSchema); err != nil {
		return nil, err
	}

	submitAction, err := compiler.Compile("submit_action.json")
	if err != nil {
		return nil, err
	}
	markOpened, err := compiler.Compile("mark_opened.json")
	if err != nil {
		return nil, err
	}
	closeNotification, err := compiler.Compile("close_notification.json")
	if err != nil {
		return nil, err
	}
	publicationConfirmed, err := compiler.Compile("publication_confirmed.json")
	if err != nil {
		return nil, err
	}
	return &schemas{
		submitAction:         submitAction,
		markOpened:           markOpened,
		closeNotification:    closeNotification,
		publicationConfirmed: publicationConfirmed,
	}, nil
}

// decodeValidated reads the request body, validates it against schema,
// and unmarshals it into out.
func decodeValidated(r *http.Request, schema *jsonschema.Schema, out any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return err
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}
