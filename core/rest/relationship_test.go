package rest_test

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/tomaswangen/safrs/core/rest"
)

// relObjectDoc decodes a relationship document whose data is a single,
// possibly null resource linkage.
type relObjectDoc struct {
	Data  *rest.Resource         `json:"data"`
	Links map[string]string      `json:"links"`
	Meta  map[string]interface{} `json:"meta"`
}

// relListDoc decodes a relationship document whose data is a list.
type relListDoc struct {
	Data  []rest.Resource        `json:"data"`
	Links map[string]string      `json:"links"`
	Meta  map[string]interface{} `json:"meta"`
}

func TestRelationshipToOne(t *testing.T) {
	user := create(t, "/users", "user", map[string]interface{}{
		"name":  "Reader",
		"email": "reader@test.com",
	})
	book := create(t, "/books", "book", map[string]interface{}{"title": t.Name()})
	path := "/books/" + book.ID + "/reader"

	doc := relObjectDoc{}
	if _, err := testService.client.Get(path, &doc); err != nil {
		t.Fatal(err)
	}
	if doc.Data != nil {
		t.Fatal("unassigned to-one relationship should be null:", doc.Data)
	}
	if doc.Meta["direction"] != "TOONE" {
		t.Fatal("unexpected direction meta:", doc.Meta)
	}
	if doc.Links["self"] == "" {
		t.Fatal("missing self link")
	}

	// assign with an object body
	patched := relListDoc{}
	status, err := testService.client.Patch(path, map[string]interface{}{
		"data": map[string]interface{}{"id": user.ID},
	}, &patched)
	if err != nil {
		t.Fatal(err)
	}
	if status != http.StatusCreated {
		t.Fatal("unexpected status:", status)
	}
	if len(patched.Data) != 1 || patched.Data[0].ID != user.ID {
		t.Fatal("unexpected patch response:", patched.Data)
	}

	doc = relObjectDoc{}
	if _, err := testService.client.Get(path, &doc); err != nil {
		t.Fatal(err)
	}
	if doc.Data == nil || doc.Data.ID != user.ID {
		t.Fatal("relationship not assigned:", doc.Data)
	}

	// a list body is only legal for a to-many relationship
	expectError(t, http.MethodPatch, path, map[string]interface{}{
		"data": []interface{}{map[string]interface{}{"id": user.ID}},
	}, http.StatusInternalServerError,
		"To PATCH a MANYTOONE relationship you should provide a dictionary instead of a list")

	// null clears
	status, err = testService.client.Patch(path, map[string]interface{}{"data": nil}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if status != http.StatusOK {
		t.Fatal("clearing should respond 200:", status)
	}
	doc = relObjectDoc{}
	if _, err := testService.client.Get(path, &doc); err != nil {
		t.Fatal(err)
	}
	if doc.Data != nil {
		t.Fatal("relationship should be cleared:", doc.Data)
	}
}

func TestRelationshipToOnePost(t *testing.T) {
	user := create(t, "/users", "user", map[string]interface{}{
		"name":  "Poster",
		"email": "poster@test.com",
	})
	book := create(t, "/books", "book", map[string]interface{}{"title": t.Name()})
	path := "/books/" + book.ID + "/reader"

	expectError(t, http.MethodPost, path, map[string]interface{}{
		"data": map[string]interface{}{"id": user.ID},
	}, http.StatusBadRequest, "Invalid Data Object")

	expectError(t, http.MethodPost, path, map[string]interface{}{
		"data": []interface{}{
			map[string]interface{}{"id": user.ID, "type": "user"},
			map[string]interface{}{"id": user.ID, "type": "user"},
		},
	}, http.StatusForbidden, "Too many items for a MANYTOONE relationship")

	expectError(t, http.MethodPost, path, map[string]interface{}{
		"data": []interface{}{map[string]interface{}{"id": user.ID}},
	}, http.StatusForbidden, "Invalid data payload")

	expectError(t, http.MethodPost, path, map[string]interface{}{
		"data": []interface{}{map[string]interface{}{"id": user.ID, "type": "book"}},
	}, http.StatusForbidden, "Invalid type")

	doc := relListDoc{}
	status, err := testService.client.Post(path, map[string]interface{}{
		"data": []interface{}{map[string]interface{}{"id": user.ID, "type": "user"}},
	}, &doc)
	if err != nil {
		t.Fatal(err)
	}
	if status != http.StatusOK || len(doc.Data) != 1 || doc.Data[0].ID != user.ID {
		t.Fatal("unexpected post result:", status, doc.Data)
	}

	// an empty list clears the relation
	doc = relListDoc{}
	if _, err := testService.client.Post(path, map[string]interface{}{
		"data": []interface{}{},
	}, &doc); err != nil {
		t.Fatal(err)
	}
	if len(doc.Data) != 0 {
		t.Fatal("unexpected clear result:", doc.Data)
	}
	check := relObjectDoc{}
	if _, err := testService.client.Get(path, &check); err != nil {
		t.Fatal(err)
	}
	if check.Data != nil {
		t.Fatal("relationship should be cleared:", check.Data)
	}
}

func TestRelationshipToMany(t *testing.T) {
	user := create(t, "/users", "user", map[string]interface{}{
		"name":  "Bookworm",
		"email": "bookworm@test.com",
	})
	b1 := create(t, "/books", "book", map[string]interface{}{"title": t.Name() + " 1"})
	b2 := create(t, "/books", "book", map[string]interface{}{"title": t.Name() + " 2"})
	b3 := create(t, "/books", "book", map[string]interface{}{"title": t.Name() + " 3"})
	path := "/users/" + user.ID + "/books_read"

	doc := relListDoc{}
	if _, err := testService.client.Get(path, &doc); err != nil {
		t.Fatal(err)
	}
	if doc.Data == nil || len(doc.Data) != 0 {
		t.Fatal("empty to-many relationship should be an empty list:", doc.Data)
	}
	if doc.Meta["direction"] != "TOMANY" {
		t.Fatal("unexpected direction meta:", doc.Meta)
	}

	// append; unresolvable items are skipped, not fatal
	doc = relListDoc{}
	if _, err := testService.client.Post(path, map[string]interface{}{
		"data": []interface{}{
			map[string]interface{}{"id": b1.ID},
			map[string]interface{}{"id": b2.ID},
			map[string]interface{}{"id": uuid.NewString()},
			map[string]interface{}{},
		},
	}, &doc); err != nil {
		t.Fatal(err)
	}
	if len(doc.Data) != 2 {
		t.Fatal("unexpected members after append:", doc.Data)
	}

	// appending an existing member does not duplicate it
	doc = relListDoc{}
	if _, err := testService.client.Post(path, map[string]interface{}{
		"data": []interface{}{
			map[string]interface{}{"id": b1.ID},
			map[string]interface{}{"id": b3.ID},
		},
	}, &doc); err != nil {
		t.Fatal(err)
	}
	if len(doc.Data) != 3 {
		t.Fatal("unexpected members after second append:", doc.Data)
	}

	// membership check by child id
	member := relListDoc{}
	if _, err := testService.client.Get(path+"/"+b1.ID, &member); err != nil {
		t.Fatal(err)
	}
	if len(member.Data) != 1 || member.Data[0].ID != b1.ID {
		t.Fatal("unexpected membership result:", member.Data)
	}
	b4 := create(t, "/books", "book", map[string]interface{}{"title": t.Name() + " 4"})
	expectError(t, http.MethodGet, path+"/"+b4.ID, nil, http.StatusNotFound, "Not Found")

	// an object body is only legal for a to-one relationship
	expectError(t, http.MethodPatch, path, map[string]interface{}{
		"data": map[string]interface{}{"id": b1.ID},
	}, http.StatusInternalServerError,
		"To PATCH a TOMANY relationship you should provide a list")

	// a list replaces the members completely
	doc = relListDoc{}
	status, err := testService.client.Patch(path, map[string]interface{}{
		"data": []interface{}{map[string]interface{}{"id": b2.ID}},
	}, &doc)
	if err != nil {
		t.Fatal(err)
	}
	if status != http.StatusCreated {
		t.Fatal("unexpected status:", status)
	}
	check := relListDoc{}
	if _, err := testService.client.Get(path, &check); err != nil {
		t.Fatal(err)
	}
	if len(check.Data) != 1 || check.Data[0].ID != b2.ID {
		t.Fatal("unexpected members after replace:", check.Data)
	}

	// list items must be objects
	expectError(t, http.MethodPatch, path, map[string]interface{}{
		"data": []interface{}{"not an object"},
	}, http.StatusBadRequest, "Invalid data object")

	// null clears
	if _, err := testService.client.Patch(path, map[string]interface{}{"data": nil}, nil); err != nil {
		t.Fatal(err)
	}
	check = relListDoc{}
	if _, err := testService.client.Get(path, &check); err != nil {
		t.Fatal(err)
	}
	if len(check.Data) != 0 {
		t.Fatal("relationship should be cleared:", check.Data)
	}
}

func TestRelationshipDelete(t *testing.T) {
	user := create(t, "/users", "user", map[string]interface{}{
		"name":  "Remover",
		"email": "remover@test.com",
	})
	b1 := create(t, "/books", "book", map[string]interface{}{"title": t.Name() + " 1"})
	b2 := create(t, "/books", "book", map[string]interface{}{"title": t.Name() + " 2"})
	path := "/users/" + user.ID + "/books_read"

	if _, err := testService.client.Patch(path, map[string]interface{}{
		"data": []interface{}{
			map[string]interface{}{"id": b1.ID},
			map[string]interface{}{"id": b2.ID},
		},
	}, nil); err != nil {
		t.Fatal(err)
	}

	if _, err := testService.client.Delete(path + "/" + b1.ID); err != nil {
		t.Fatal(err)
	}
	check := relListDoc{}
	if _, err := testService.client.Get(path, &check); err != nil {
		t.Fatal(err)
	}
	if len(check.Data) != 1 || check.Data[0].ID != b2.ID {
		t.Fatal("unexpected members after delete:", check.Data)
	}

	// deleting a child that is not a member succeeds anyway
	if _, err := testService.client.Delete(path + "/" + b1.ID); err != nil {
		t.Fatal(err)
	}

	// but the child itself must exist
	expectError(t, http.MethodDelete, path+"/"+uuid.NewString(), nil, http.StatusNotFound, "")

	// and so must the parent
	expectError(t, http.MethodGet, "/users/"+uuid.NewString()+"/books_read", nil,
		http.StatusBadRequest, "Invalid Parent Id")
}
