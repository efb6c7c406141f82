// Package memstore is an in-memory implementation of the rest storage
// contract. Sessions work on a deep copy of the store's data: commit swaps
// the copy in, rollback discards it. It backs the test suite and small
// embedded deployments.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/tomaswangen/safrs/core/rest"
)

// Store is an in-memory rest.Store.
type Store struct {
	mu       sync.Mutex
	registry *rest.Registry
	classes  map[string]*classData

	unique       map[string]map[string]struct{} // class -> unique attributes
	lazy         map[string]map[string]struct{} // class -> lazily served relationships
	noCheapCount bool
}

// Builder is a builder helper for the Store
type Builder struct {
	// Registry is the resource-class registry. This is mandatory.
	Registry *rest.Registry
	// UniqueAttributes maps class names to attributes with a uniqueness
	// constraint; violating one yields a rest.ConstraintError.
	UniqueAttributes map[string][]string
	// LazyRelations maps class names to relationship keys that are served
	// as lazily evaluated queries instead of eager lists.
	LazyRelations map[string][]string
	// DisableCheapCount makes Count report no cheap answer, forcing the
	// query engine onto its counting fallback.
	DisableCheapCount bool
}

type classData struct {
	order   []string
	objects map[string]*object
}

type object struct {
	id         string
	attributes map[string]interface{}
	toOne      map[string]string
	toMany     map[string][]string
}

// New creates the in-memory store for the given registry.
func New(bb *Builder) *Store {
	if bb.Registry == nil {
		panic("Registry is missing")
	}
	s := &Store{
		registry:     bb.Registry,
		classes:      map[string]*classData{},
		unique:       map[string]map[string]struct{}{},
		lazy:         map[string]map[string]struct{}{},
		noCheapCount: bb.DisableCheapCount,
	}
	for _, class := range bb.Registry.Classes() {
		s.classes[class.Name] = &classData{objects: map[string]*object{}}
	}
	for class, attributes := range bb.UniqueAttributes {
		set := map[string]struct{}{}
		for _, a := range attributes {
			set[a] = struct{}{}
		}
		s.unique[class] = set
	}
	for class, keys := range bb.LazyRelations {
		set := map[string]struct{}{}
		for _, k := range keys {
			set[k] = struct{}{}
		}
		s.lazy[class] = set
	}
	return s
}

// Session opens a new logical transaction on a snapshot of the store.
func (s *Store) Session(ctx context.Context) (rest.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &session{store: s, data: deepCopy(s.classes)}, nil
}

func deepCopy(classes map[string]*classData) map[string]*classData {
	out := make(map[string]*classData, len(classes))
	for name, cd := range classes {
		copied := &classData{
			order:   append([]string(nil), cd.order...),
			objects: make(map[string]*object, len(cd.objects)),
		}
		for id, obj := range cd.objects {
			copied.objects[id] = obj.clone()
		}
		out[name] = copied
	}
	return out
}

func (o *object) clone() *object {
	c := &object{
		id:         o.id,
		attributes: make(map[string]interface{}, len(o.attributes)),
		toOne:      make(map[string]string, len(o.toOne)),
		toMany:     make(map[string][]string, len(o.toMany)),
	}
	for k, v := range o.attributes {
		c.attributes[k] = v
	}
	for k, v := range o.toOne {
		c.toOne[k] = v
	}
	for k, v := range o.toMany {
		c.toMany[k] = append([]string(nil), v...)
	}
	return c
}

type session struct {
	store *Store
	data  map[string]*classData
}

func (s *session) classData(class string) (*classData, error) {
	cd, ok := s.data[class]
	if !ok {
		return nil, fmt.Errorf("unknown class %s", class)
	}
	return cd, nil
}

// Lookup returns the instance with the given id, or nil if absent.
func (s *session) Lookup(class string, id string) (rest.Instance, error) {
	cd, err := s.classData(class)
	if err != nil {
		return nil, err
	}
	obj, ok := cd.objects[id]
	if !ok {
		return nil, nil
	}
	return s.instance(class, obj), nil
}

func (s *session) instance(class string, obj *object) *instance {
	c, _ := s.store.registry.Class(class)
	return &instance{session: s, class: c, obj: obj}
}

// Collection returns a query over all instances of class, in insertion
// order.
func (s *session) Collection(class string) rest.Query {
	cd, err := s.classData(class)
	if err != nil {
		return &query{err: err}
	}
	return &query{
		session: s,
		class:   class,
		data:    cd,
		ids:     append([]string(nil), cd.order...),
	}
}

// Create inserts a new instance with a fresh uuid. The instance is only
// visible to the store once the session commits, hence persisted is false.
func (s *session) Create(class string, attributes map[string]interface{}) (rest.Instance, bool, error) {
	cd, err := s.classData(class)
	if err != nil {
		return nil, false, err
	}
	c, _ := s.store.registry.Class(class)
	for name := range attributes {
		if !c.HasAttribute(name) {
			return nil, false, fmt.Errorf("unknown attribute %s on class %s", name, class)
		}
	}
	for attr := range s.store.unique[class] {
		value, ok := attributes[attr]
		if !ok {
			continue
		}
		for _, id := range cd.order {
			if valueString(cd.objects[id].attributes[attr]) == valueString(value) {
				return nil, false, &rest.ConstraintError{
					Err: fmt.Errorf("duplicate value %v violates unique constraint on %s.%s",
						value, class, attr),
				}
			}
		}
	}

	obj := &object{
		id:         uuid.NewString(),
		attributes: map[string]interface{}{},
		toOne:      map[string]string{},
		toMany:     map[string][]string{},
	}
	for name, value := range attributes {
		obj.attributes[name] = value
	}
	cd.objects[obj.id] = obj
	cd.order = append(cd.order, obj.id)
	return s.instance(class, obj), false, nil
}

// Delete removes the instance and clears any dangling references to it.
func (s *session) Delete(inst rest.Instance) error {
	cd, err := s.classData(inst.Class())
	if err != nil {
		return err
	}
	id := inst.ID()
	if _, ok := cd.objects[id]; !ok {
		return fmt.Errorf("no %s with id %s", inst.Class(), id)
	}
	delete(cd.objects, id)
	for i, existing := range cd.order {
		if existing == id {
			cd.order = append(cd.order[:i], cd.order[i+1:]...)
			break
		}
	}
	for _, class := range s.store.registry.Classes() {
		for _, rel := range class.Relationships() {
			if rel.Child.Name != inst.Class() {
				continue
			}
			peers := s.data[class.Name]
			for _, peer := range peers.objects {
				if peer.toOne[rel.Key] == id {
					delete(peer.toOne, rel.Key)
				}
				if members, ok := peer.toMany[rel.Key]; ok {
					remaining := members[:0]
					for _, member := range members {
						if member != id {
							remaining = append(remaining, member)
						}
					}
					peer.toMany[rel.Key] = remaining
				}
			}
		}
	}
	return nil
}

// Count is the cheap total count of a class.
func (s *session) Count(class string) (int, bool) {
	if s.store.noCheapCount {
		return 0, false
	}
	cd, ok := s.data[class]
	if !ok {
		return 0, false
	}
	return len(cd.order), true
}

// Commit publishes the session's data to the store.
func (s *session) Commit() error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	s.store.classes = deepCopy(s.data)
	return nil
}

// Rollback discards all uncommitted changes of the session.
func (s *session) Rollback() error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	s.data = deepCopy(s.store.classes)
	return nil
}
