package v1

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"slices"
	"testing"

	"github.com/fuxialexander/codesherpa/backend/internal/server/dto"
)

func TestValidateCodeExecutionRequest(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		cases := []struct {
			name  string
			input string
			want  []string
		}{
			{"TwoLines", `{"code": ["print(1)", "print(2)"]}`, []string{"print(1)", "print(2)"}},
			{"Empty", `{"code": []}`, []string{}},
			{"EmptyStrings", `{"code": ["", ""]}`, []string{"", ""}},
			{"ExtraKeysIgnored", `{"code": ["x = 1"], "lang": "python"}`, []string{"x = 1"}},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				got, err := ValidateCodeExecutionRequest(decode(t, tc.input))
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if got.Code == nil {
					t.Fatal("Code is nil")
				}
				if !slices.Equal(got.Code, tc.want) {
					t.Errorf("Code = %q, want %q", got.Code, tc.want)
				}
			})
		}
	})

	t.Run("GoSlice", func(t *testing.T) {
		in := []string{"a", "b"}
		got, err := ValidateCodeExecutionRequest(map[string]any{"code": in})
		if err != nil {
			t.Fatal(err)
		}
		in[0] = "changed"
		if got.Code[0] != "a" {
			t.Error("result aliases the input slice")
		}
	})

	t.Run("Invalid", func(t *testing.T) {
		cases := []struct {
			name  string
			input any
			want  []dto.FieldError
		}{
			{"Missing", decode(t, `{}`), []dto.FieldError{{Path: "code", Message: "field required"}}},
			{"Null", decode(t, `{"code": null}`), []dto.FieldError{{Path: "code", Message: "must be a list of strings, got null"}}},
			{"String", decode(t, `{"code": "print(1)"}`), []dto.FieldError{{Path: "code", Message: "must be a list of strings, got string"}}},
			{"Object", decode(t, `{"code": {"a": 1}}`), []dto.FieldError{{Path: "code", Message: "must be a list of strings, got object"}}},
			{
				"EveryBadElement",
				decode(t, `{"code": ["ok", 1, "ok", null, true, ["x"]]}`),
				[]dto.FieldError{
					{Path: "code[1]", Message: "must be a string, got number"},
					{Path: "code[3]", Message: "must be a string, got null"},
					{Path: "code[4]", Message: "must be a string, got boolean"},
					{Path: "code[5]", Message: "must be a string, got array"},
				},
			},
			{"NotObject", decode(t, `["print(1)"]`), []dto.FieldError{{Path: "", Message: "must be an object, got array"}}},
			{"NilInput", nil, []dto.FieldError{{Path: "", Message: "must be an object, got null"}}},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				got, err := ValidateCodeExecutionRequest(tc.input)
				if got != nil {
					t.Errorf("got value %+v, want nil", got)
				}
				assertValidationError(t, err, "CodeExecutionRequest", tc.want)
			})
		}
	})
}

func TestValidateCommandExecutionRequest(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		for _, cmd := range []string{"ls -la", "", "echo 'a; b' | wc -c"} {
			in := map[string]any{"command": cmd}
			got, err := ValidateCommandExecutionRequest(in)
			if err != nil {
				t.Fatalf("%q: unexpected error: %v", cmd, err)
			}
			if got.Command != cmd {
				t.Errorf("Command = %q, want %q", got.Command, cmd)
			}
		}
	})

	t.Run("Invalid", func(t *testing.T) {
		cases := []struct {
			name  string
			input any
			want  []dto.FieldError
		}{
			{"Missing", decode(t, `{}`), []dto.FieldError{{Path: "command", Message: "field required"}}},
			{"Null", decode(t, `{"command": null}`), []dto.FieldError{{Path: "command", Message: "must be a string, got null"}}},
			{"Number", decode(t, `{"command": 42}`), []dto.FieldError{{Path: "command", Message: "must be a string, got number"}}},
			{"List", decode(t, `{"command": ["ls"]}`), []dto.FieldError{{Path: "command", Message: "must be a string, got array"}}},
			{"NotObject", decode(t, `"ls"`), []dto.FieldError{{Path: "", Message: "must be an object, got string"}}},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				got, err := ValidateCommandExecutionRequest(tc.input)
				if got != nil {
					t.Errorf("got value %+v, want nil", got)
				}
				assertValidationError(t, err, "CommandExecutionRequest", tc.want)
			})
		}
	})
}

func TestIdempotentAndRoundTrip(t *testing.T) {
	t.Run("Code", func(t *testing.T) {
		in := decode(t, `{"code": ["import os", "print(os.getcwd())"]}`)
		a, err := ValidateCodeExecutionRequest(in)
		if err != nil {
			t.Fatal(err)
		}
		b, err := ValidateCodeExecutionRequest(in)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(a, b) {
			t.Errorf("second validation = %+v, want %+v", b, a)
		}
		c, err := ValidateCodeExecutionRequest(a.AsMap())
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(a, c) {
			t.Errorf("round trip = %+v, want %+v", c, a)
		}
	})

	t.Run("EmptyCode", func(t *testing.T) {
		a := &CodeExecutionRequest{Code: []string{}}
		c, err := ValidateCodeExecutionRequest(a.AsMap())
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(a, c) {
			t.Errorf("round trip = %+v, want %+v", c, a)
		}
	})

	t.Run("Command", func(t *testing.T) {
		a := &CommandExecutionRequest{Command: "ls -la"}
		c, err := ValidateCommandExecutionRequest(a.AsMap())
		if err != nil {
			t.Fatal(err)
		}
		if *a != *c {
			t.Errorf("round trip = %+v, want %+v", c, a)
		}
	})

	t.Run("FailureRepeats", func(t *testing.T) {
		in := decode(t, `{"code": [1, 2]}`)
		_, err1 := ValidateCodeExecutionRequest(in)
		_, err2 := ValidateCodeExecutionRequest(in)
		if err1 == nil || err2 == nil || err1.Error() != err2.Error() {
			t.Errorf("errors differ: %v vs %v", err1, err2)
		}
	})
}

func TestUnmarshalJSON(t *testing.T) {
	t.Run("Code", func(t *testing.T) {
		var r CodeExecutionRequest
		if err := json.Unmarshal([]byte(`{"code":["a","b"]}`), &r); err != nil {
			t.Fatal(err)
		}
		if !slices.Equal(r.Code, []string{"a", "b"}) {
			t.Errorf("Code = %q", r.Code)
		}
		out, err := json.Marshal(&r)
		if err != nil {
			t.Fatal(err)
		}
		if got, want := string(out), `{"code":["a","b"]}`; got != want {
			t.Errorf("Marshal = %s, want %s", got, want)
		}
	})

	t.Run("CodeRejectsString", func(t *testing.T) {
		var r CodeExecutionRequest
		err := json.Unmarshal([]byte(`{"code":"print(1)"}`), &r)
		assertValidationError(t, err, "CodeExecutionRequest", []dto.FieldError{{Path: "code", Message: "must be a list of strings, got string"}})
	})

	t.Run("CodeRejectsNull", func(t *testing.T) {
		var r CodeExecutionRequest
		err := json.Unmarshal([]byte(`null`), &r)
		assertValidationError(t, err, "CodeExecutionRequest", []dto.FieldError{{Path: "", Message: "must be an object, got null"}})
	})

	t.Run("CodeRejectsHugeNumber", func(t *testing.T) {
		var r CodeExecutionRequest
		err := json.Unmarshal([]byte(`{"code":["ok",1e400]}`), &r)
		assertValidationError(t, err, "CodeExecutionRequest", []dto.FieldError{{Path: "code[1]", Message: "must be a string, got number"}})
	})

	t.Run("CommandRejectsHugeNumber", func(t *testing.T) {
		var r CommandExecutionRequest
		err := json.Unmarshal([]byte(`{"command":1e400}`), &r)
		assertValidationError(t, err, "CommandExecutionRequest", []dto.FieldError{{Path: "command", Message: "must be a string, got number"}})
	})

	t.Run("Command", func(t *testing.T) {
		var r CommandExecutionRequest
		if err := json.Unmarshal([]byte(`{"command":"ls"}`), &r); err != nil {
			t.Fatal(err)
		}
		if r.Command != "ls" {
			t.Errorf("Command = %q", r.Command)
		}
	})

	t.Run("CommandMissing", func(t *testing.T) {
		var r CommandExecutionRequest
		err := json.Unmarshal([]byte(`{}`), &r)
		assertValidationError(t, err, "CommandExecutionRequest", []dto.FieldError{{Path: "command", Message: "field required"}})
	})

	t.Run("Syntax", func(t *testing.T) {
		var r CommandExecutionRequest
		err := json.Unmarshal([]byte(`{"command":`), &r)
		if err == nil {
			t.Fatal("expected syntax error")
		}
		var ve *dto.ValidationError
		if errors.As(err, &ve) {
			t.Errorf("syntax error reported as validation error: %v", err)
		}
	})
}

func TestValidate(t *testing.T) {
	t.Run("EmptyReq", func(t *testing.T) {
		var r EmptyReq
		if err := r.Validate(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
	t.Run("ZeroCodeExecutionRequest", func(t *testing.T) {
		assertValidationError(t, (&CodeExecutionRequest{}).Validate(), "CodeExecutionRequest", []dto.FieldError{{Path: "code", Message: "field required"}})
	})
	t.Run("EmptyCode", func(t *testing.T) {
		if err := (&CodeExecutionRequest{Code: []string{}}).Validate(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
	t.Run("CommandExecutionRequest", func(t *testing.T) {
		if err := (&CommandExecutionRequest{}).Validate(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestRoutes(t *testing.T) {
	seen := map[string]bool{}
	for _, r := range Routes {
		if seen[r.Name] {
			t.Errorf("duplicate route name %q", r.Name)
		}
		seen[r.Name] = true
		if r.Resp == nil {
			t.Errorf("%s: nil Resp", r.Name)
		}
	}
	r := RouteByName("runCode")
	if r == nil {
		t.Fatal("runCode route missing")
	}
	if got, want := r.Pattern(), "POST /api/v1/run_code"; got != want {
		t.Errorf("Pattern() = %q, want %q", got, want)
	}
	if got, want := r.ReqName(), "CodeExecutionRequest"; got != want {
		t.Errorf("ReqName() = %q, want %q", got, want)
	}
	for name, want := range map[string]string{"getConfig": "Server", "runCode": "Run code", "listFiles": "Files"} {
		if got := RouteByName(name).CategoryName(); got != want {
			t.Errorf("%s CategoryName() = %q, want %q", name, got, want)
		}
	}
	info := RouteByName("listFiles").Info()
	if info.Request != "" || info.Response != "FileInfo" || !info.IsArray || info.Method != "GET" {
		t.Errorf("Info() = %+v", info)
	}
	if RouteByName("nope") != nil {
		t.Error("RouteByName(nope) != nil")
	}
}

func decode(t *testing.T, s string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatal(err)
	}
	return v
}

// assertValidationError checks that err is a *dto.ValidationError with a 422
// status and exactly the expected field errors.
func assertValidationError(t *testing.T, err error, kind string, want []dto.FieldError) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var ve *dto.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *dto.ValidationError, got %T", err)
	}
	if ve.StatusCode() != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", ve.StatusCode(), http.StatusUnprocessableEntity)
	}
	if ve.Kind != kind {
		t.Errorf("kind = %q, want %q", ve.Kind, kind)
	}
	if !slices.Equal(ve.Fields, want) {
		t.Errorf("fields = %+v, want %+v", ve.Fields, want)
	}
}
