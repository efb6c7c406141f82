package rest_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestResourceCreateAndGet(t *testing.T) {
	created := create(t, "/users", "user", map[string]interface{}{
		"name":  "Jonathan Test",
		"email": "jonathan@test.com",
	})
	if created.Type != "user" {
		t.Fatal("unexpected type:", created.Type)
	}
	if _, err := uuid.Parse(created.ID); err != nil {
		t.Fatal("id is not a uuid:", created.ID)
	}
	if created.Attributes["name"] != "Jonathan Test" {
		t.Fatal("unexpected attributes:", created.Attributes)
	}

	doc := itemDocument{}
	if _, err := testService.client.Get("/users/"+created.ID, &doc); err != nil {
		t.Fatal(err)
	}
	if doc.JSONAPI["version"] != "1.0" {
		t.Fatal("missing jsonapi version member:", doc.JSONAPI)
	}
	if doc.Data.ID != created.ID || doc.Data.Attributes["email"] != "jonathan@test.com" {
		t.Fatal("unexpected document:", doc.Data)
	}
	if doc.Meta["count"] != float64(1) {
		t.Fatal("single-instance count should be 1:", doc.Meta)
	}
	if _, ok := doc.Meta["limit"]; !ok {
		t.Fatal("meta should carry the effective limit")
	}
	if _, ok := doc.Meta["instance_meta"]; !ok {
		t.Fatal("meta should carry the instance metadata hook")
	}
	if !strings.Contains(doc.Links["self"], "/users/"+created.ID) {
		t.Fatal("unexpected self link:", doc.Links)
	}
}

func TestResourceGetNotFound(t *testing.T) {
	expectError(t, http.MethodGet, "/users/"+uuid.NewString(), nil, http.StatusNotFound, "")
}

func TestResourceCreateErrors(t *testing.T) {
	expectError(t, http.MethodPost, "/users", map[string]interface{}{},
		http.StatusBadRequest, "Request contains no data")
	expectError(t, http.MethodPost, "/users", map[string]interface{}{"data": []interface{}{}},
		http.StatusBadRequest, "data is not a dict object")
	expectError(t, http.MethodPost, "/users",
		map[string]interface{}{"data": map[string]interface{}{"attributes": map[string]interface{}{}}},
		http.StatusBadRequest, "Invalid type member")
	expectError(t, http.MethodPost, "/users", map[string]interface{}{
		"data": map[string]interface{}{
			"type":       "user",
			"attributes": map[string]interface{}{"shoe_size": 46},
		},
	}, http.StatusBadRequest, "unknown attribute 'shoe_size'")
}

func TestErrorEnvelopeHasNoData(t *testing.T) {
	_, raw, err := testService.client.Do(http.MethodPost, "/users", map[string]interface{}{})
	if err != nil {
		t.Fatal(err)
	}
	var envelope map[string]interface{}
	if err := unmarshal(raw, &envelope); err != nil {
		t.Fatal(err)
	}
	if _, ok := envelope["data"]; ok {
		t.Fatal("error envelope must not carry a data member:", string(raw))
	}
	if _, ok := envelope["errors"]; !ok {
		t.Fatal("error envelope must carry an errors member:", string(raw))
	}
}

func TestResourceSchemaValidation(t *testing.T) {
	book := create(t, "/books", "book", map[string]interface{}{"title": t.Name()})
	_ = book

	expectError(t, http.MethodPost, "/reviews", map[string]interface{}{
		"data": map[string]interface{}{
			"type":       "review",
			"attributes": map[string]interface{}{"content": "great", "stars": 10},
		},
	}, http.StatusBadRequest, "")

	create(t, "/reviews", "review", map[string]interface{}{"content": "great", "stars": 5})
}

func TestResourcePatch(t *testing.T) {
	user := create(t, "/users", "user", map[string]interface{}{
		"name":  "Patch Me",
		"email": "patch@test.com",
	})

	doc := itemDocument{}
	status, err := testService.client.Patch("/users/"+user.ID, map[string]interface{}{
		"data": map[string]interface{}{
			"id":         user.ID,
			"attributes": map[string]interface{}{"name": "Patched"},
		},
	}, &doc)
	if err != nil {
		t.Fatal(err)
	}
	if status != http.StatusCreated {
		t.Fatal("unexpected status:", status)
	}
	if doc.Data.Attributes["name"] != "Patched" {
		t.Fatal("attribute not updated:", doc.Data.Attributes)
	}

	// the url id and the body id are compared under the uuid decoding rule
	status, err = testService.client.Patch("/users/"+strings.ToUpper(user.ID), map[string]interface{}{
		"data": map[string]interface{}{
			"id":         user.ID,
			"attributes": map[string]interface{}{"name": "Patched Again"},
		},
	}, &itemDocument{})
	if err != nil {
		t.Fatal(err)
	}
	if status != http.StatusCreated {
		t.Fatal("uppercase uuid should decode to the same id:", status)
	}
}

func TestResourcePatchErrors(t *testing.T) {
	user := create(t, "/users", "user", map[string]interface{}{
		"name":  "Patch Errors",
		"email": "patch-errors@test.com",
	})

	// id mismatch between url and body
	expectError(t, http.MethodPatch, "/users/"+user.ID, map[string]interface{}{
		"data": map[string]interface{}{
			"id":         uuid.NewString(),
			"attributes": map[string]interface{}{"name": "x"},
		},
	}, http.StatusBadRequest, "Invalid ID")

	// body without an id
	expectError(t, http.MethodPatch, "/users/"+user.ID, map[string]interface{}{
		"data": map[string]interface{}{
			"attributes": map[string]interface{}{"name": "x"},
		},
	}, http.StatusBadRequest, "Invalid ID")

	// empty data object
	expectError(t, http.MethodPatch, "/users/"+user.ID, map[string]interface{}{
		"data": map[string]interface{}{},
	}, http.StatusBadRequest, "Invalid Data Object")

	// no json body at all
	expectError(t, http.MethodPatch, "/users/"+user.ID, nil,
		http.StatusBadRequest, "Invalid Object Type")

	// unknown instance
	unknown := uuid.NewString()
	expectError(t, http.MethodPatch, "/users/"+unknown, map[string]interface{}{
		"data": map[string]interface{}{
			"id":         unknown,
			"attributes": map[string]interface{}{"name": "x"},
		},
	}, http.StatusBadRequest, "Invalid ID")
}

func TestResourcePostWithID(t *testing.T) {
	user := create(t, "/users", "user", map[string]interface{}{
		"name":  "Upsert",
		"email": "upsert@test.com",
	})

	// a post with an id delegates to patch
	doc := itemDocument{}
	status, err := testService.client.Post("/users/"+user.ID, map[string]interface{}{
		"data": map[string]interface{}{
			"id":         user.ID,
			"attributes": map[string]interface{}{"name": "Upserted"},
		},
	}, &doc)
	if err != nil {
		t.Fatal(err)
	}
	if status != http.StatusCreated || doc.Data.Attributes["name"] != "Upserted" {
		t.Fatal("unexpected upsert result:", status, doc.Data)
	}

	// any failure inside the delegation is flattened into a generic error
	expectError(t, http.MethodPost, "/users/"+user.ID, map[string]interface{}{
		"data": map[string]interface{}{
			"id":         uuid.NewString(),
			"attributes": map[string]interface{}{"name": "x"},
		},
	}, http.StatusInternalServerError, "POST failed")
}

func TestResourceDelete(t *testing.T) {
	user := create(t, "/users", "user", map[string]interface{}{
		"name":  "Delete Me",
		"email": "delete@test.com",
	})

	status, raw, err := testService.client.Do(http.MethodDelete, "/users/"+user.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	if status != http.StatusOK || string(raw) != "{}" {
		t.Fatal("unexpected delete response:", status, string(raw))
	}

	expectError(t, http.MethodGet, "/users/"+user.ID, nil, http.StatusNotFound, "")
	expectError(t, http.MethodDelete, "/users/"+user.ID, nil, http.StatusNotFound, "")
}

func TestResourceUniqueConstraint(t *testing.T) {
	create(t, "/users", "user", map[string]interface{}{
		"name":  "First",
		"email": "unique@test.com",
	})

	// the storage constraint violation surfaces as a generic error with the
	// underlying message
	status, raw, err := testService.client.Do(http.MethodPost, "/users", map[string]interface{}{
		"data": map[string]interface{}{
			"type":       "user",
			"attributes": map[string]interface{}{"name": "Second", "email": "unique@test.com"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if status != http.StatusInternalServerError {
		t.Fatal("unexpected status:", status, string(raw))
	}
	doc := errorDocument{}
	if err := unmarshal(raw, &doc); err != nil {
		t.Fatal(err)
	}
	if len(doc.Errors) != 1 || !strings.Contains(doc.Errors[0].Detail, "unique") {
		t.Fatal("unexpected error envelope:", string(raw))
	}
}
