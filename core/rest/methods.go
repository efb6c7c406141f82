package rest

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/gorilla/mux"
)

// methodAPI is the sibling single-method endpoint: it invokes one named
// remote method on an instance, or on the class itself when no id is given.
type methodAPI struct {
	api   *API
	class *Class
	name  string
}

// invoke resolves the method, rejects anything not explicitly marked public,
// merges query-string args with any JSON-body meta.args and wraps results
// that are not pre-formatted documents in {meta: {result: ...}}.
func (ma *methodAPI) invoke(rc *requestContext) (*response, error) {
	id := mux.Vars(rc.r)[ma.class.IDParam()]

	var instance Instance
	if id != "" {
		var err error
		instance, err = rc.session.Lookup(ma.class.Name, id)
		if err != nil {
			return nil, err
		}
		if instance == nil {
			return nil, ValidationError("Invalid ID")
		}
	}

	method, ok := ma.class.Method(ma.name)
	if !ok || method.Call == nil {
		return nil, ValidationError("Invalid method \"%s\"", ma.name)
	}
	if !method.Public {
		return nil, ValidationError("Method is not public")
	}

	args := map[string]interface{}{}
	for key, array := range rc.r.URL.Query() {
		if len(array) > 0 {
			args[key] = array[0]
		}
	}
	if rc.r.Method == http.MethodPost && rc.r.Body != nil {
		var body map[string]interface{}
		if err := json.NewDecoder(rc.r.Body).Decode(&body); err == nil {
			if meta, ok := body["meta"].(map[string]interface{}); ok {
				if bodyArgs, ok := meta["args"].(map[string]interface{}); ok {
					for key, value := range bodyArgs {
						args[key] = value
					}
				}
			}
		}
	}

	rc.rlog.Debugf("method %s args %v", ma.name, args)

	result, err := method.Call(rc.r.Context(), rc.session, instance, args)
	if err != nil {
		return nil, err
	}

	if doc, ok := result.(*Document); ok {
		return &response{body: doc}, nil
	}
	return &response{body: map[string]interface{}{
		"meta": map[string]interface{}{"result": result},
	}}, nil
}
