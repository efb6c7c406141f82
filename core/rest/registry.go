package rest

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/google/uuid"
	"github.com/tomaswangen/safrs/core"
)

// Configuration describes the complete data model of an API: its resource
// classes, their attributes and their relationships.
type Configuration struct {
	Classes []ClassConfiguration `json:"classes"`
}

// ClassConfiguration describes one resource class
type ClassConfiguration struct {
	// Class is the name of the resource class. This is mandatory.
	Class string `json:"class"`
	// Attributes are the declared attribute field names.
	Attributes []string `json:"attributes"`
	// IDType selects the id-decoding rule, "uuid" or "string" (default).
	IDType string `json:"id_type"`
	// SchemaID optionally names a JSON schema the attribute document of
	// create and patch requests must validate against.
	SchemaID      string                      `json:"schema_id"`
	Description   string                      `json:"description"`
	Relationships []RelationshipConfiguration `json:"relationships"`
	Methods       []MethodConfiguration       `json:"methods"`
}

// MethodConfiguration declares one remote method on a class. The callable is
// bound later with API.HandleMethod; only public methods can be invoked
// through the HTTP surface.
type MethodConfiguration struct {
	Method      string `json:"method"`
	Public      bool   `json:"public"`
	Description string `json:"description"`
}

// RelationshipConfiguration describes one named relationship of a class
type RelationshipConfiguration struct {
	// Key is the relationship's name, used in routes and include paths.
	Key string `json:"key"`
	// Class is the name of the peer resource class.
	Class string `json:"class"`
	// Direction determines the cardinality rules enforced during mutation.
	Direction   core.Direction `json:"direction"`
	Description string         `json:"description"`
}

// Relationship is the resolved descriptor of a named relationship.
type Relationship struct {
	Key       string
	Child     *Class
	Direction core.Direction
}

// MethodFunc is a remote method on a resource class. For class-level
// invocations instance is nil.
type MethodFunc func(ctx context.Context, session Session, instance Instance,
	args map[string]interface{}) (interface{}, error)

// Method is a registered remote method. Only public methods can be invoked
// through the HTTP surface.
type Method struct {
	Public bool
	Call   MethodFunc
}

// Class is a registered resource class. All name lookups go through maps
// built once at registration time and fail closed on unknown names.
type Class struct {
	Name     string
	SchemaID string

	idType        string
	attributes    map[string]struct{}
	attributeList []string
	relationships map[string]*Relationship
	relationList  []*Relationship
	methods       map[string]Method
	methodList    []string
}

// Registry holds all registered resource classes of an API, keyed by name.
type Registry struct {
	classes   map[string]*Class
	classList []*Class
}

// NewRegistry builds a registry from a configuration JSON. Peer classes of
// relationships must be declared in the same configuration.
func NewRegistry(configJSON string) (*Registry, error) {
	var config Configuration
	if err := json.Unmarshal([]byte(configJSON), &config); err != nil {
		return nil, fmt.Errorf("parse error in api configuration: %s", err)
	}

	r := &Registry{classes: make(map[string]*Class)}
	for _, cc := range config.Classes {
		if cc.Class == "" {
			return nil, fmt.Errorf("class configuration lacks a name")
		}
		if _, ok := r.classes[cc.Class]; ok {
			return nil, fmt.Errorf("duplicate class %s", cc.Class)
		}
		c := &Class{
			Name:          cc.Class,
			SchemaID:      cc.SchemaID,
			idType:        cc.IDType,
			attributes:    make(map[string]struct{}),
			relationships: make(map[string]*Relationship),
			methods:       make(map[string]Method),
		}
		for _, a := range cc.Attributes {
			if _, ok := c.attributes[a]; ok {
				return nil, fmt.Errorf("duplicate attribute %s on class %s", a, cc.Class)
			}
			c.attributes[a] = struct{}{}
			c.attributeList = append(c.attributeList, a)
		}
		r.classes[cc.Class] = c
		r.classList = append(r.classList, c)
	}

	// second pass: resolve relationship peers and declared methods
	for _, cc := range config.Classes {
		c := r.classes[cc.Class]
		for _, mc := range cc.Methods {
			if mc.Method == "" {
				return nil, fmt.Errorf("method on class %s lacks a name", cc.Class)
			}
			if _, ok := c.methods[mc.Method]; ok {
				return nil, fmt.Errorf("duplicate method %s on class %s", mc.Method, cc.Class)
			}
			c.methods[mc.Method] = Method{Public: mc.Public}
			c.methodList = append(c.methodList, mc.Method)
		}
		for _, rc := range cc.Relationships {
			child, ok := r.classes[rc.Class]
			if !ok {
				return nil, fmt.Errorf("relationship %s.%s references unknown class %s",
					cc.Class, rc.Key, rc.Class)
			}
			if rc.Key == "" {
				return nil, fmt.Errorf("relationship on class %s lacks a key", cc.Class)
			}
			if _, ok := c.relationships[rc.Key]; ok {
				return nil, fmt.Errorf("duplicate relationship %s on class %s", rc.Key, cc.Class)
			}
			if _, ok := c.methods[rc.Key]; ok {
				return nil, fmt.Errorf("relationship %s on class %s collides with a method", rc.Key, cc.Class)
			}
			rel := &Relationship{Key: rc.Key, Child: child, Direction: rc.Direction}
			c.relationships[rc.Key] = rel
			c.relationList = append(c.relationList, rel)
		}
	}
	return r, nil
}

// Class looks up a registered class by name.
func (r *Registry) Class(name string) (*Class, bool) {
	c, ok := r.classes[name]
	return c, ok
}

// Classes returns all registered classes in declaration order.
func (r *Registry) Classes() []*Class {
	return r.classList
}

// HasAttribute reports whether name is a declared attribute of the class.
func (c *Class) HasAttribute(name string) bool {
	_, ok := c.attributes[name]
	return ok
}

// Attributes returns the declared attribute names in declaration order.
func (c *Class) Attributes() []string {
	return c.attributeList
}

// Relationship looks up a declared relationship by key.
func (c *Class) Relationship(key string) (*Relationship, bool) {
	rel, ok := c.relationships[key]
	return rel, ok
}

// Relationships returns the declared relationships in declaration order.
func (c *Class) Relationships() []*Relationship {
	return c.relationList
}

// Method looks up a registered remote method by name.
func (c *Class) Method(name string) (Method, bool) {
	m, ok := c.methods[name]
	return m, ok
}

// MethodNames returns the registered method names in registration order.
func (c *Class) MethodNames() []string {
	return c.methodList
}

// ValidateID applies the class's id-decoding rule and returns the canonical
// string encoding of the identifier.
func (c *Class) ValidateID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("empty id")
	}
	if c.idType == "uuid" {
		parsed, err := uuid.Parse(id)
		if err != nil {
			return "", err
		}
		return parsed.String(), nil
	}
	return id, nil
}

// IDParam is the URL parameter name identifying an instance of this class,
// for example "user_id" for a class named user.
func (c *Class) IDParam() string {
	return c.Name + "_id"
}
