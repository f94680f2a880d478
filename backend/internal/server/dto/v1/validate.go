// Request validation against untyped input.
package v1

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/fuxialexander/codesherpa/backend/internal/server/dto"
)

const (
	kindCode    = "CodeExecutionRequest"
	kindCommand = "CommandExecutionRequest"
)

// ValidateCodeExecutionRequest checks that input is an object whose "code"
// key holds a list of strings. Every offending path is reported in the
// returned *dto.ValidationError. Unknown keys are ignored.
func ValidateCodeExecutionRequest(input any) (*CodeExecutionRequest, error) {
	ve := &dto.ValidationError{Kind: kindCode}
	obj, ok := asObject(input, ve)
	if !ok {
		return nil, ve
	}
	var code []string
	switch raw, present := obj["code"]; {
	case !present:
		ve.Add("code", "field required")
	case raw == nil:
		ve.Add("code", "must be a list of strings, got null")
	default:
		code = stringList("code", raw, ve)
	}
	if err := ve.OrNil(); err != nil {
		return nil, err
	}
	return &CodeExecutionRequest{Code: code}, nil
}

// ValidateCommandExecutionRequest checks that input is an object whose
// "command" key holds a string. The string may be empty.
func ValidateCommandExecutionRequest(input any) (*CommandExecutionRequest, error) {
	ve := &dto.ValidationError{Kind: kindCommand}
	obj, ok := asObject(input, ve)
	if !ok {
		return nil, ve
	}
	raw, present := obj["command"]
	command, isString := raw.(string)
	switch {
	case !present:
		ve.Add("command", "field required")
	case !isString:
		ve.Add("command", "must be a string, got "+jsonType(raw))
	}
	if err := ve.OrNil(); err != nil {
		return nil, err
	}
	return &CommandExecutionRequest{Command: command}, nil
}

// Validate rejects a request that was never populated. Decoding through
// UnmarshalJSON already enforces the element types.
func (r *CodeExecutionRequest) Validate() error {
	if r.Code == nil {
		ve := &dto.ValidationError{Kind: kindCode}
		ve.Add("code", "field required")
		return ve
	}
	return nil
}

// Validate is a no-op: any string, including "", is a valid command.
func (r *CommandExecutionRequest) Validate() error { return nil }

// UnmarshalJSON decodes b and runs ValidateCodeExecutionRequest on it.
func (r *CodeExecutionRequest) UnmarshalJSON(b []byte) error {
	raw, err := decodeUntyped(b)
	if err != nil {
		return err
	}
	v, err := ValidateCodeExecutionRequest(raw)
	if err != nil {
		return err
	}
	*r = *v
	return nil
}

// UnmarshalJSON decodes b and runs ValidateCommandExecutionRequest on it.
func (r *CommandExecutionRequest) UnmarshalJSON(b []byte) error {
	raw, err := decodeUntyped(b)
	if err != nil {
		return err
	}
	v, err := ValidateCommandExecutionRequest(raw)
	if err != nil {
		return err
	}
	*r = *v
	return nil
}

// AsMap returns the untyped mapping form of r, suitable for re-validation.
func (r *CodeExecutionRequest) AsMap() map[string]any {
	items := make([]any, len(r.Code))
	for i, s := range r.Code {
		items[i] = s
	}
	return map[string]any{"code": items}
}

// AsMap returns the untyped mapping form of r, suitable for re-validation.
func (r *CommandExecutionRequest) AsMap() map[string]any {
	return map[string]any{"command": r.Command}
}

// decodeUntyped decodes b keeping numbers as json.Number, so that a number
// float64 cannot hold still reaches the validator as a non-string value.
func decodeUntyped(b []byte) (any, error) {
	d := json.NewDecoder(bytes.NewReader(b))
	d.UseNumber()
	var v any
	if err := d.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func asObject(input any, ve *dto.ValidationError) (map[string]any, bool) {
	obj, ok := input.(map[string]any)
	if !ok {
		ve.Add("", "must be an object, got "+jsonType(input))
	}
	return obj, ok
}

// stringList converts raw into a non-nil []string, recording one error per
// non-string element.
func stringList(path string, raw any, ve *dto.ValidationError) []string {
	switch v := raw.(type) {
	case []string:
		return append(make([]string, 0, len(v)), v...)
	case []any:
		out := make([]string, 0, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				ve.Add(fmt.Sprintf("%s[%d]", path, i), "must be a string, got "+jsonType(item))
				continue
			}
			out = append(out, s)
		}
		return out
	default:
		ve.Add(path, "must be a list of strings, got "+jsonType(raw))
		return nil
	}
}

// jsonType names the JSON type of a value produced by encoding/json.
func jsonType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64, json.Number:
		return "number"
	case string:
		return "string"
	case []any, []string:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
