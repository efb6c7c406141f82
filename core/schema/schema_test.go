package schema

import "testing"

var schemaRefString = `{ "type" : "string" ,
                         "$id" : "http://some_host.com/string.json"}`

var schemaReviewString = `{ "$id": "http://some_host.com/review.json",
	"type": "object",
	"required": ["content"],
	"properties": {
		"content": { "$ref": "http://some_host.com/string.json" },
		"stars": { "type": "number", "minimum": 1, "maximum": 5 }
	}
}`

func newTestValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator([]string{schemaReviewString}, []string{schemaRefString})
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestHasSchema(t *testing.T) {
	v := newTestValidator(t)
	if !v.HasSchema("http://some_host.com/review.json") {
		t.Fatal("schema should be known")
	}
	if v.HasSchema("http://some_host.com/unknown.json") {
		t.Fatal("schema should not be known")
	}
}

func TestValidateStruct(t *testing.T) {
	v := newTestValidator(t)
	id := "http://some_host.com/review.json"

	valid := map[string]interface{}{"content": "great", "stars": 4}
	if err := v.ValidateStruct(valid, id); err != nil {
		t.Fatal(err)
	}

	missing := map[string]interface{}{"stars": 4}
	if err := v.ValidateStruct(missing, id); err == nil {
		t.Fatal("missing required property accepted")
	}

	outOfRange := map[string]interface{}{"content": "great", "stars": 9}
	if err := v.ValidateStruct(outOfRange, id); err == nil {
		t.Fatal("out-of-range property accepted")
	}

	if err := v.ValidateStruct(valid, "http://some_host.com/unknown.json"); err == nil {
		t.Fatal("unknown schema id accepted")
	}
}

func TestValidateString(t *testing.T) {
	v := newTestValidator(t)
	id := "http://some_host.com/review.json"
	if err := v.ValidateString(`{"content": "ok"}`, id); err != nil {
		t.Fatal(err)
	}
	if err := v.ValidateString(`{"content": 42}`, id); err == nil {
		t.Fatal("wrong type accepted through ref")
	}
}

func TestNewValidatorErrors(t *testing.T) {
	if _, err := NewValidator([]string{`{"type": "object"}`}, nil); err == nil {
		t.Fatal("schema without $id accepted")
	}
	if _, err := NewValidator([]string{`not json`}, nil); err == nil {
		t.Fatal("malformed schema accepted")
	}
}
