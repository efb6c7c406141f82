package rest

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/tomaswangen/safrs/core"
)

// relationshipAPI handles the relationship sub-resource endpoints of one
// declared relationship, branching on its directionality.
//
// The endpoint URL is of the form /parents/{parent_id}/children/{child_id};
// when parent and child share the same id parameter name, the child's is
// disambiguated with a numeric suffix.
type relationshipAPI struct {
	api         *API
	parent      *Class
	child       *Class
	rel         *Relationship
	parentParam string
	childParam  string
}

func newRelationshipAPI(a *API, parent *Class, rel *Relationship) *relationshipAPI {
	rapi := &relationshipAPI{
		api:         a,
		parent:      parent,
		child:       rel.Child,
		rel:         rel,
		parentParam: parent.IDParam(),
		childParam:  rel.Child.IDParam(),
	}
	if rapi.parentParam == rapi.childParam {
		rapi.childParam += "2"
	}
	return rapi
}

// relationshipDocument is the response shape of the relationship endpoints:
// resource linkage plus a self link and a direction meta.
type relationshipDocument struct {
	Data  interface{}            `json:"data"`
	Links map[string]string      `json:"links,omitempty"`
	Meta  map[string]interface{} `json:"meta,omitempty"`
}

func (rapi *relationshipAPI) directionMeta() map[string]interface{} {
	direction := "TOMANY"
	if rapi.rel.Direction.ToOne() {
		direction = "TOONE"
	}
	return map[string]interface{}{"direction": direction}
}

// parseArgs resolves the parent instance and reads the current relationship
// value. A missing parent id parameter or a failed lookup is a validation
// error.
func (rapi *relationshipAPI) parseArgs(rc *requestContext) (Instance, RelationValue, error) {
	parentID := mux.Vars(rc.r)[rapi.parentParam]
	if parentID == "" {
		return nil, RelationValue{}, ValidationError("Invalid Parent Id")
	}
	parent, err := rc.session.Lookup(rapi.parent.Name, parentID)
	if err != nil {
		return nil, RelationValue{}, err
	}
	if parent == nil {
		return nil, RelationValue{}, ValidationError("Invalid Parent Id")
	}
	relation, err := parent.Relation(rapi.rel.Key)
	if err != nil {
		return nil, RelationValue{}, err
	}
	return parent, relation, nil
}

// view builds the relationship document from the parent's current
// relationship value, optionally narrowed to one child id.
func (rapi *relationshipAPI) view(rc *requestContext, parent Instance, childID string) (*relationshipDocument, error) {
	relation, err := parent.Relation(rapi.rel.Key)
	if err != nil {
		return nil, err
	}

	var data interface{}
	if childID != "" {
		child, err := rc.session.Lookup(rapi.child.Name, childID)
		if err != nil {
			return nil, err
		}
		if child == nil {
			return nil, NotFoundError("%s with id %s not found", rapi.child.Name, childID)
		}
		if relation.Kind == RelationSingle {
			if !sameInstance(relation.Instance, child) {
				return nil, NotFoundError("Not Found")
			}
			data = []Instance{child}
		} else {
			member, err := relation.Contains(child)
			if err != nil {
				return nil, err
			}
			if !member {
				return nil, NotFoundError("Not Found")
			}
			data = []Instance{child}
		}
	} else if rapi.rel.Direction == core.ManyToOne {
		// possibly null single-value resource linkage
		data = relation.Instance
	} else {
		members, err := relation.Members(0)
		if err != nil {
			return nil, err
		}
		if members == nil {
			members = []Instance{}
		}
		data = members
	}

	return &relationshipDocument{
		Data:  resourceData(data),
		Links: map[string]string{"self": requestURL(rc.r)},
		Meta:  rapi.directionMeta(),
	}, nil
}

// get retrieves the relationship, or checks membership of one child when a
// child id is present.
func (rapi *relationshipAPI) get(rc *requestContext) (*response, error) {
	parent, _, err := rapi.parseArgs(rc)
	if err != nil {
		return nil, err
	}
	doc, err := rapi.view(rc, parent, mux.Vars(rc.r)[rapi.childParam])
	if err != nil {
		return nil, err
	}
	return &response{body: doc}, nil
}

// patch replaces the relationship value. An object body is only legal for a
// many-to-one relationship, a list body only for a to-many relationship, and
// null clears either. Responds 200 for the clear case, 201 otherwise.
func (rapi *relationshipAPI) patch(rc *requestContext) (*response, error) {
	parent, _, err := rapi.parseArgs(rc)
	if err != nil {
		return nil, err
	}
	body, err := rc.jsonBody()
	if err != nil {
		return nil, err
	}

	childID := ""
	switch data := body["data"].(type) {
	case map[string]interface{}:
		if rapi.rel.Direction != core.ManyToOne {
			return nil, GenericError("To PATCH a TOMANY relationship you should provide a list")
		}
		id, _ := data["id"].(string)
		child, err := rc.session.Lookup(rapi.child.Name, id)
		if err != nil {
			return nil, err
		}
		if child == nil {
			return nil, NotFoundError("%s with id %s not found", rapi.child.Name, id)
		}
		if err := parent.SetRelation(rapi.rel.Key, child); err != nil {
			return nil, err
		}
		childID = child.ID()

	case []interface{}:
		if rapi.rel.Direction == core.ManyToOne {
			return nil, GenericError("To PATCH a MANYTOONE relationship you should provide a dictionary instead of a list")
		}
		children := make([]Instance, 0, len(data))
		for _, item := range data {
			object, ok := item.(map[string]interface{})
			if !ok {
				return nil, ValidationError("Invalid data object")
			}
			id, _ := object["id"].(string)
			child, err := rc.session.Lookup(rapi.child.Name, id)
			if err != nil {
				return nil, err
			}
			if child == nil {
				return nil, NotFoundError("%s with id %s not found", rapi.child.Name, id)
			}
			children = append(children, child)
		}
		if err := parent.ReplaceRelation(rapi.rel.Key, children); err != nil {
			return nil, err
		}

	case nil:
		// {data: null} clears the relation. For a to-many relationship this
		// empties the member list, surprising as that may be.
		if rapi.rel.Direction == core.ManyToOne {
			if err := parent.SetRelation(rapi.rel.Key, nil); err != nil {
				return nil, err
			}
		} else {
			if err := parent.ReplaceRelation(rapi.rel.Key, nil); err != nil {
				return nil, err
			}
		}
		return &response{body: map[string]interface{}{}}, nil

	default:
		return nil, ValidationError("Invalid Data Object Type")
	}

	doc, err := rapi.view(rc, parent, childID)
	if err != nil {
		return nil, err
	}
	return &response{
		status:   http.StatusCreated,
		location: rapi.api.relationshipPath(rapi.parent, rapi.rel, parent.ID(), childID),
		body:     doc,
	}, nil
}

// post appends to the relationship. For a many-to-one relationship the data
// array must hold at most one element; for a to-many relationship items that
// miss an id or resolve to no instance are skipped with an accumulated,
// logged error instead of aborting the request.
func (rapi *relationshipAPI) post(rc *requestContext) (*response, error) {
	parent, relation, err := rapi.parseArgs(rc)
	if err != nil {
		return nil, err
	}
	body, err := rc.jsonBody()
	if err != nil {
		return nil, err
	}
	data, ok := body["data"].([]interface{})
	if !ok {
		return nil, ValidationError("Invalid Data Object")
	}

	var result []Instance
	if rapi.rel.Direction == core.ManyToOne {
		if len(data) == 0 {
			if err := parent.SetRelation(rapi.rel.Key, nil); err != nil {
				return nil, err
			}
			result = []Instance{}
		} else if len(data) > 1 {
			return nil, ValidationErrorStatus(http.StatusForbidden,
				"Too many items for a MANYTOONE relationship")
		} else {
			item, ok := data[0].(map[string]interface{})
			if !ok {
				return nil, ValidationErrorStatus(http.StatusForbidden, "Invalid data payload")
			}
			childID, _ := item["id"].(string)
			childType, _ := item["type"].(string)
			if childID == "" || childType == "" {
				return nil, ValidationErrorStatus(http.StatusForbidden, "Invalid data payload")
			}
			if childType != rapi.child.Name {
				return nil, ValidationErrorStatus(http.StatusForbidden, "Invalid type")
			}
			child, err := rc.session.Lookup(rapi.child.Name, childID)
			if err != nil {
				return nil, err
			}
			if child == nil {
				return nil, NotFoundError("%s with id %s not found", rapi.child.Name, childID)
			}
			if err := parent.SetRelation(rapi.rel.Key, child); err != nil {
				return nil, err
			}
			result = []Instance{child}
		}
	} else {
		members, err := relation.Members(0)
		if err != nil {
			return nil, err
		}
		var itemErrors []string
		for _, raw := range data {
			item, _ := raw.(map[string]interface{})
			childID, _ := item["id"].(string)
			if childID == "" {
				itemErrors = append(itemErrors, "no child id")
				rc.rlog.Errorf("relationship %s append: %v", rapi.rel.Key, itemErrors)
				continue
			}
			child, err := rc.session.Lookup(rapi.child.Name, childID)
			if err != nil {
				return nil, err
			}
			if child == nil {
				itemErrors = append(itemErrors, "invalid child id "+childID)
				rc.rlog.Errorf("relationship %s append: %v", rapi.rel.Key, itemErrors)
				continue
			}
			member := false
			for _, existing := range members {
				if sameInstance(existing, child) {
					member = true
					break
				}
			}
			if !member {
				members = append(members, child)
			}
		}
		if err := parent.ReplaceRelation(rapi.rel.Key, members); err != nil {
			return nil, err
		}
		result = members
	}

	return &response{body: &relationshipDocument{Data: resourceData(result)}}, nil
}

// delete removes the child from the relationship. Deleting a child that is
// not currently a member logs a warning and succeeds anyway.
func (rapi *relationshipAPI) delete(rc *requestContext) (*response, error) {
	parent, relation, err := rapi.parseArgs(rc)
	if err != nil {
		return nil, err
	}
	childID := mux.Vars(rc.r)[rapi.childParam]
	if childID == "" {
		return nil, ValidationError("Invalid Child Id")
	}
	child, err := rc.session.Lookup(rapi.child.Name, childID)
	if err != nil {
		return nil, err
	}
	if child == nil {
		return nil, NotFoundError("%s with id %s not found", rapi.child.Name, childID)
	}

	if relation.Kind == RelationSingle {
		if sameInstance(relation.Instance, child) {
			if err := parent.SetRelation(rapi.rel.Key, nil); err != nil {
				return nil, err
			}
		} else {
			rc.rlog.Warningln("Child not in relation")
		}
	} else {
		members, err := relation.Members(0)
		if err != nil {
			return nil, err
		}
		remaining := make([]Instance, 0, len(members))
		found := false
		for _, member := range members {
			if sameInstance(member, child) {
				found = true
				continue
			}
			remaining = append(remaining, member)
		}
		if !found {
			rc.rlog.Warningln("Child not in relation")
		} else if err := parent.ReplaceRelation(rapi.rel.Key, remaining); err != nil {
			return nil, err
		}
	}

	return &response{body: map[string]interface{}{}}, nil
}
