/*
Package client provides easy and fast in-process access to a REST api

Instead of marshalling HTTP, the client talks directly to the mux router. It
is perfectly suited for unit tests, and for request handlers that need to
call other handlers to fulfill their task.
*/
package client

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
)

// Client makes pseudo-REST requests to a router.
type Client struct {
	router *mux.Router
}

// New creates a client to make pseudo-REST requests to the api.
func New(router *mux.Router) *Client {
	return &Client{router: router}
}

// Do performs a request and returns the raw status code and body, with no
// expectations on either. Error-path tests use this directly.
func (c *Client) Do(method, path string, body interface{}) (int, []byte, error) {
	reader := &bytes.Buffer{}
	if body != nil {
		j, err := json.MarshalIndent(body, "", "  ")
		if err != nil {
			return http.StatusBadRequest, nil, err
		}
		reader = bytes.NewBuffer(j)
	}
	r, _ := http.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	c.router.ServeHTTP(rec, r)
	return rec.Code, rec.Body.Bytes(), nil
}

func (c *Client) expect(method, path string, body interface{}, result interface{}, expected ...int) (int, error) {
	status, response, err := c.Do(method, path, body)
	if err != nil {
		return status, err
	}
	ok := false
	for _, e := range expected {
		ok = ok || status == e
	}
	if !ok {
		return status, fmt.Errorf("handler returned wrong status code: got %v want %v. Error: %s",
			status, expected, string(response))
	}
	if result == nil || len(response) == 0 {
		return status, nil
	}
	return status, json.Unmarshal(response, result)
}

// Get gets the document at path. Expects http.StatusOK as response, otherwise
// it will flag an error. Returns the actual http status code.
func (c *Client) Get(path string, result interface{}) (int, error) {
	return c.expect(http.MethodGet, path, nil, result, http.StatusOK)
}

// Post posts a document to path. Expects http.StatusCreated or http.StatusOK
// as valid responses, otherwise it will flag an error. Returns the actual
// http status code.
func (c *Client) Post(path string, body interface{}, result interface{}) (int, error) {
	return c.expect(http.MethodPost, path, body, result, http.StatusCreated, http.StatusOK)
}

// Patch patches the document at path. Expects http.StatusCreated or
// http.StatusOK as valid responses, otherwise it will flag an error. Returns
// the actual http status code.
func (c *Client) Patch(path string, body interface{}, result interface{}) (int, error) {
	return c.expect(http.MethodPatch, path, body, result, http.StatusCreated, http.StatusOK)
}

// Delete deletes the document at path. Expects http.StatusOK as response,
// otherwise it will flag an error. Returns the actual http status code.
func (c *Client) Delete(path string) (int, error) {
	return c.expect(http.MethodDelete, path, nil, nil, http.StatusOK)
}
