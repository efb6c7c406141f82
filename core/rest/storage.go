package rest

import "context"

// Store is the narrow contract the request pipeline consumes from the storage
// collaborator. One Session is created per request; the request wrapper
// commits it on success and rolls it back on any error.
type Store interface {
	Session(ctx context.Context) (Session, error)
}

// Session is a single logical transaction against the backing store.
type Session interface {
	// Lookup returns the instance of class with the given id, or nil if no
	// such instance exists.
	Lookup(class string, id string) (Instance, error)
	// Collection returns the queryable collection of all instances of class.
	Collection(class string) Query
	// Create constructs a new instance of class from the given attribute
	// values. The second return value reports whether the construction
	// already persisted the instance; if false, the caller commits.
	Create(class string, attributes map[string]interface{}) (Instance, bool, error)
	// Delete removes the instance from the store.
	Delete(instance Instance) error
	// Count is the cheap total count for a class. It may be approximate.
	// Returns ok=false when the store cannot answer cheaply, in which case
	// the caller counts the filtered query directly.
	Count(class string) (count int, ok bool)
	Commit() error
	Rollback() error
}

// Query is a filterable, sortable, sliceable collection of instances.
// Implementations are immutable; every method returns a derived query.
type Query interface {
	// FilterIn restricts to instances whose column value is in values.
	FilterIn(column string, values []string) Query
	// Union combines this query with another over the same class.
	Union(other Query) Query
	// OrderBy appends a sort key. Unknown columns are a no-op reference that
	// may be rejected at execution, depending on the engine.
	OrderBy(column string, descending bool) Query
	// Slice restricts to the window [offset, offset+limit).
	Slice(offset, limit int) Query
	// All materializes the query.
	All() ([]Instance, error)
	// Count returns the total number of instances the query matches,
	// ignoring any Slice window.
	Count() (int, error)
}

// Instance is one row of a resource class.
type Instance interface {
	// Class is the name of the resource class this instance belongs to.
	Class() string
	// ID is the stable identifier, round-tripped through string encoding.
	ID() string
	// Attributes returns the attribute values of this instance.
	Attributes() map[string]interface{}
	// Set writes a single attribute value.
	Set(attribute string, value interface{}) error
	// Meta is the per-instance metadata hook, surfaced as instance_meta.
	Meta() map[string]interface{}
	// Relation reads the current value of a named relationship.
	Relation(name string) (RelationValue, error)
	// SetRelation assigns the single peer of a to-one relationship.
	// A nil child clears the relation.
	SetRelation(name string, child Instance) error
	// ReplaceRelation completely replaces the members of a to-many
	// relationship.
	ReplaceRelation(name string, children []Instance) error
}

// RelationKind tags the shape of a relationship value.
type RelationKind int

// the three shapes a relationship read can produce
const (
	// RelationSingle is a single related instance, possibly nil.
	RelationSingle RelationKind = iota
	// RelationEager is an ordered, fully materialized collection.
	RelationEager
	// RelationLazy is a boundedly-sliceable query, evaluated on demand.
	RelationLazy
)

// RelationValue is the tagged variant a relationship read returns. Exactly
// the fields matching Kind are meaningful.
type RelationValue struct {
	Kind     RelationKind
	Instance Instance   // RelationSingle
	Items    []Instance // RelationEager
	Query    Query      // RelationLazy
}

// Members materializes the relationship members. A limit <= 0 means no bound.
// A single nil instance yields an empty list.
func (v RelationValue) Members(limit int) ([]Instance, error) {
	switch v.Kind {
	case RelationSingle:
		if v.Instance == nil {
			return nil, nil
		}
		return []Instance{v.Instance}, nil
	case RelationEager:
		if limit > 0 && len(v.Items) > limit {
			return v.Items[:limit], nil
		}
		return v.Items, nil
	case RelationLazy:
		q := v.Query
		if limit > 0 {
			q = q.Slice(0, limit)
		}
		return q.All()
	}
	return nil, nil
}

// Contains reports whether child is currently a member of the relationship.
func (v RelationValue) Contains(child Instance) (bool, error) {
	if child == nil {
		return false, nil
	}
	members, err := v.Members(0)
	if err != nil {
		return false, err
	}
	for _, member := range members {
		if sameInstance(member, child) {
			return true, nil
		}
	}
	return false, nil
}

func sameInstance(a, b Instance) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Class() == b.Class() && a.ID() == b.ID()
}

// instanceKey is the identity key used by the inclusion resolver's
// deduplicating accumulator.
func instanceKey(instance Instance) string {
	return instance.Class() + "\x00" + instance.ID()
}
