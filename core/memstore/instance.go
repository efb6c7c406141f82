package memstore

import (
	"fmt"

	"github.com/tomaswangen/safrs/core/rest"
)

type instance struct {
	session *session
	class   *rest.Class
	obj     *object
}

func (i *instance) Class() string {
	return i.class.Name
}

func (i *instance) ID() string {
	return i.obj.id
}

func (i *instance) Attributes() map[string]interface{} {
	attributes := make(map[string]interface{}, len(i.obj.attributes))
	for _, name := range i.class.Attributes() {
		if value, ok := i.obj.attributes[name]; ok {
			attributes[name] = value
		}
	}
	return attributes
}

func (i *instance) Set(attribute string, value interface{}) error {
	if !i.class.HasAttribute(attribute) {
		return fmt.Errorf("unknown attribute %s on class %s", attribute, i.class.Name)
	}
	i.obj.attributes[attribute] = value
	return nil
}

func (i *instance) Meta() map[string]interface{} {
	return map[string]interface{}{}
}

func (i *instance) Relation(name string) (rest.RelationValue, error) {
	rel, ok := i.class.Relationship(name)
	if !ok {
		return rest.RelationValue{}, fmt.Errorf("unknown relationship %s on class %s", name, i.class.Name)
	}

	if rel.Direction.ToOne() {
		value := rest.RelationValue{Kind: rest.RelationSingle}
		if id := i.obj.toOne[name]; id != "" {
			child, err := i.session.Lookup(rel.Child.Name, id)
			if err != nil {
				return rest.RelationValue{}, err
			}
			value.Instance = child
		}
		return value, nil
	}

	ids := i.obj.toMany[name]
	if lazy, ok := i.session.store.lazy[i.class.Name]; ok {
		if _, ok := lazy[name]; ok {
			cd, err := i.session.classData(rel.Child.Name)
			if err != nil {
				return rest.RelationValue{}, err
			}
			return rest.RelationValue{Kind: rest.RelationLazy, Query: &query{
				session: i.session,
				class:   rel.Child.Name,
				data:    cd,
				ids:     append([]string(nil), ids...),
			}}, nil
		}
	}

	items := make([]rest.Instance, 0, len(ids))
	for _, id := range ids {
		child, err := i.session.Lookup(rel.Child.Name, id)
		if err != nil {
			return rest.RelationValue{}, err
		}
		if child != nil {
			items = append(items, child)
		}
	}
	return rest.RelationValue{Kind: rest.RelationEager, Items: items}, nil
}

func (i *instance) SetRelation(name string, child rest.Instance) error {
	rel, ok := i.class.Relationship(name)
	if !ok {
		return fmt.Errorf("unknown relationship %s on class %s", name, i.class.Name)
	}
	if !rel.Direction.ToOne() {
		return fmt.Errorf("relationship %s on class %s holds more than one peer", name, i.class.Name)
	}
	if child == nil {
		delete(i.obj.toOne, name)
		return nil
	}
	if child.Class() != rel.Child.Name {
		return fmt.Errorf("relationship %s expects class %s", name, rel.Child.Name)
	}
	i.obj.toOne[name] = child.ID()
	return nil
}

func (i *instance) ReplaceRelation(name string, children []rest.Instance) error {
	rel, ok := i.class.Relationship(name)
	if !ok {
		return fmt.Errorf("unknown relationship %s on class %s", name, i.class.Name)
	}
	if rel.Direction.ToOne() {
		return fmt.Errorf("relationship %s on class %s holds a single peer", name, i.class.Name)
	}
	ids := make([]string, 0, len(children))
	for _, child := range children {
		if child.Class() != rel.Child.Name {
			return fmt.Errorf("relationship %s expects class %s", name, rel.Child.Name)
		}
		ids = append(ids, child.ID())
	}
	i.obj.toMany[name] = ids
	return nil
}
