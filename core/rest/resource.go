package rest

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/gorilla/mux"
)

// resourceAPI handles the CRUD endpoints of a single resource class. It is
// state-free per request; everything request-scoped lives in requestContext.
type resourceAPI struct {
	api   *API
	class *Class
}

// jsonBody extracts and validates the JSON request payload.
func (rc *requestContext) jsonBody() (map[string]interface{}, error) {
	var body map[string]interface{}
	if err := json.NewDecoder(rc.r.Body).Decode(&body); err != nil || body == nil {
		return nil, ValidationError("Invalid Object Type")
	}
	return body, nil
}

// fetchOne builds the single-instance document for id, the way GET does.
// Patch and post re-fetch through this to assemble their 201 responses.
func (ra *resourceAPI) fetchOne(rc *requestContext, id string) (*Document, error) {
	instance, err := rc.session.Lookup(ra.class.Name, id)
	if err != nil {
		return nil, err
	}
	if instance == nil {
		return nil, NotFoundError("%s with id %s not found", ra.class.Name, id)
	}
	meta := map[string]interface{}{"instance_meta": instance.Meta()}
	links := map[string]string{"self": requestURL(rc.r)}
	return rc.formatResponse(instance, meta, links, nil, 1)
}

// get returns a single instance when an id is given, otherwise the filtered,
// sorted and paginated collection.
func (ra *resourceAPI) get(rc *requestContext) (*response, error) {
	id := mux.Vars(rc.r)[ra.class.IDParam()]
	if id != "" {
		doc, err := ra.fetchOne(rc, id)
		if err != nil {
			return nil, err
		}
		return &response{body: doc}, nil
	}

	links, instances, count, err := rc.collection(ra.class)
	if err != nil {
		return nil, err
	}
	doc, err := rc.formatResponse(instances, nil, links, nil, count)
	if err != nil {
		return nil, err
	}
	return &response{body: doc}, nil
}

// validateAttributes checks the attribute document of a write request: all
// names must be declared on the class and, when the class carries a schema
// id, the document must validate against it.
func (ra *resourceAPI) validateAttributes(attributes map[string]interface{}) error {
	for name := range attributes {
		if !ra.class.HasAttribute(name) {
			return ValidationError("unknown attribute '%s'", name)
		}
	}
	if ra.class.SchemaID != "" && ra.api.validator != nil && attributes != nil {
		if err := ra.api.validator.ValidateStruct(attributes, ra.class.SchemaID); err != nil {
			return ValidationError("%s", err)
		}
	}
	return nil
}

// patch creates or updates the instance specified by id. The body must carry
// a data object whose id matches the URL id under the class's id-decoding
// rule. Responds 201 with a Location header pointing at the canonical
// instance URL.
func (ra *resourceAPI) patch(rc *requestContext) (*response, error) {
	id := mux.Vars(rc.r)[ra.class.IDParam()]
	if id == "" {
		return nil, ValidationError("Invalid ID")
	}

	body, err := rc.jsonBody()
	if err != nil {
		return nil, err
	}
	data, ok := body["data"].(map[string]interface{})
	if !ok || len(data) == 0 {
		return nil, ValidationError("Invalid Data Object")
	}

	bodyID, ok := data["id"].(string)
	if !ok {
		return nil, ValidationError("Invalid ID")
	}
	urlID, err := ra.class.ValidateID(id)
	if err != nil {
		return nil, ValidationError("Invalid ID")
	}
	decodedBodyID, err := ra.class.ValidateID(bodyID)
	if err != nil || urlID != decodedBodyID {
		return nil, ValidationError("Invalid ID")
	}

	attributes, _ := data["attributes"].(map[string]interface{})
	if err := ra.validateAttributes(attributes); err != nil {
		return nil, err
	}

	instance, err := rc.session.Lookup(ra.class.Name, urlID)
	if err != nil {
		return nil, err
	}
	if instance == nil {
		return nil, ValidationError("Invalid ID")
	}
	for name, value := range attributes {
		if err := instance.Set(name, value); err != nil {
			return nil, err
		}
	}

	doc, err := ra.fetchOne(rc, instance.ID())
	if err != nil {
		return nil, err
	}
	return &response{
		status:   http.StatusCreated,
		location: ra.api.itemPath(ra.class, instance.ID()),
		body:     doc,
	}, nil
}

// post creates a new instance from the body's data.type and data.attributes.
// When an id path parameter is supplied the request is treated as an upsert
// and delegated to patch; this deviates from the strict "reject
// client-generated ids" rule on purpose.
func (ra *resourceAPI) post(rc *requestContext) (*response, error) {
	id := mux.Vars(rc.r)[ra.class.IDParam()]
	if id != "" {
		resp, err := ra.patch(rc)
		if err != nil {
			return nil, GenericError("POST failed")
		}
		return resp, nil
	}

	body, err := rc.jsonBody()
	if err != nil {
		return nil, err
	}
	rawData, ok := body["data"]
	if !ok || rawData == nil {
		return nil, ValidationError("Request contains no data")
	}
	data, ok := rawData.(map[string]interface{})
	if !ok {
		return nil, ValidationError("data is not a dict object")
	}
	objType, _ := data["type"].(string)
	if objType == "" {
		return nil, ValidationError("Invalid type member")
	}

	attributes, _ := data["attributes"].(map[string]interface{})
	if err := ra.validateAttributes(attributes); err != nil {
		return nil, err
	}

	instance, persisted, err := rc.session.Create(ra.class.Name, attributes)
	if err != nil {
		var constraint *ConstraintError
		if errors.As(err, &constraint) {
			rc.rlog.Warningln(constraint.Error())
			return nil, GenericError("%s", constraint.Error())
		}
		return nil, err
	}
	if !persisted {
		if err := rc.session.Commit(); err != nil {
			var constraint *ConstraintError
			if errors.As(err, &constraint) {
				rc.rlog.Warningln(constraint.Error())
				return nil, GenericError("%s", constraint.Error())
			}
			return nil, err
		}
	}

	doc, err := ra.fetchOne(rc, instance.ID())
	if err != nil {
		return nil, err
	}
	return &response{
		status:   http.StatusCreated,
		location: ra.api.itemPath(ra.class, instance.ID()),
		body:     doc,
	}, nil
}

// delete removes the instance specified by id and returns an empty success
// body.
func (ra *resourceAPI) delete(rc *requestContext) (*response, error) {
	id := mux.Vars(rc.r)[ra.class.IDParam()]
	if id == "" {
		return nil, NotFoundError("Not Found")
	}
	instance, err := rc.session.Lookup(ra.class.Name, id)
	if err != nil {
		return nil, err
	}
	if instance == nil {
		return nil, NotFoundError("%s with id %s not found", ra.class.Name, id)
	}
	if err := rc.session.Delete(instance); err != nil {
		return nil, err
	}
	return &response{body: map[string]interface{}{}}, nil
}
