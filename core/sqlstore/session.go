package sqlstore

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/tomaswangen/safrs/core/rest"
)

type session struct {
	store *Store
	tx    *sql.Tx
	done  bool
}

// selectList is the projection used whenever instances are materialized:
// primary key, creation timestamp, then the declared attributes in
// declaration order.
func selectList(class *rest.Class) string {
	columns := []string{pq.QuoteIdentifier(class.IDParam()), "timestamp"}
	for _, attribute := range class.Attributes() {
		columns = append(columns, pq.QuoteIdentifier(attribute))
	}
	return strings.Join(columns, ", ")
}

func (s *session) scanInstance(class *rest.Class, row interface{ Scan(...interface{}) error }) (*instance, error) {
	attributes := class.Attributes()
	i := &instance{
		session:    s,
		class:      class,
		attributes: make(map[string]interface{}, len(attributes)),
	}
	values := make([]string, len(attributes))
	dest := make([]interface{}, 0, len(attributes)+2)
	dest = append(dest, &i.id, &i.timestamp)
	for n := range values {
		dest = append(dest, &values[n])
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	for n, attribute := range attributes {
		i.attributes[attribute] = values[n]
	}
	return i, nil
}

func (s *session) class(name string) (*rest.Class, error) {
	class, ok := s.store.registry.Class(name)
	if !ok {
		return nil, fmt.Errorf("unknown class %s", name)
	}
	return class, nil
}

// Lookup returns the instance with the given id, or nil if absent. Strings
// that do not parse as uuid cannot identify a row.
func (s *session) Lookup(className string, id string) (rest.Instance, error) {
	class, err := s.class(className)
	if err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, nil
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1;",
		selectList(class), s.store.table(class.Name), pq.QuoteIdentifier(class.IDParam()))
	i, err := s.scanInstance(class, s.tx.QueryRow(query, parsed.String()))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return i, nil
}

// Collection returns a query over all instances of the class.
func (s *session) Collection(className string) rest.Query {
	class, err := s.class(className)
	if err != nil {
		return &query{err: err}
	}
	return &query{session: s, class: class, limit: -1}
}

// Create inserts a new row; the database assigns the uuid. The insert is
// immediately visible inside the transaction, so the row counts as
// persisted and the session commits only once, at the end of the request.
func (s *session) Create(className string, attributes map[string]interface{}) (rest.Instance, bool, error) {
	class, err := s.class(className)
	if err != nil {
		return nil, false, err
	}
	for name := range attributes {
		if !class.HasAttribute(name) {
			return nil, false, fmt.Errorf("unknown attribute %s on class %s", name, className)
		}
	}

	insertQuery := fmt.Sprintf("INSERT INTO %s DEFAULT VALUES RETURNING %s;",
		s.store.table(class.Name), selectList(class))
	var params []interface{}
	if len(attributes) > 0 {
		columns := make([]string, 0, len(attributes))
		placeholders := make([]string, 0, len(attributes))
		for _, name := range class.Attributes() {
			value, ok := attributes[name]
			if !ok {
				continue
			}
			params = append(params, encodeAttribute(value))
			columns = append(columns, pq.QuoteIdentifier(name))
			placeholders = append(placeholders, "$"+strconv.Itoa(len(params)))
		}
		insertQuery = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s;",
			s.store.table(class.Name), strings.Join(columns, ", "),
			strings.Join(placeholders, ", "), selectList(class))
	}
	i, err := s.scanInstance(class, s.tx.QueryRow(insertQuery, params...))
	if err != nil {
		return nil, false, constraintError(err)
	}
	return i, true, nil
}

// Delete removes the row. Join-table memberships and referencing to-one
// columns are cleaned up by the schema's foreign key actions.
func (s *session) Delete(inst rest.Instance) error {
	class, err := s.class(inst.Class())
	if err != nil {
		return err
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = $1;",
		s.store.table(class.Name), pq.QuoteIdentifier(class.IDParam()))
	result, err := s.tx.Exec(query, inst.ID())
	if err != nil {
		return constraintError(err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("no %s with id %s", inst.Class(), inst.ID())
	}
	return nil
}

// Count answers from the planner statistics, which is cheap but may lag
// behind the table. Freshly created tables report no estimate yet; those
// fall back onto the caller's exact count.
func (s *session) Count(className string) (int, bool) {
	if _, err := s.class(className); err != nil {
		return 0, false
	}
	var estimate int64
	err := s.tx.QueryRow("SELECT reltuples::bigint FROM pg_class WHERE oid = $1::regclass;",
		s.store.table(className)).Scan(&estimate)
	if err != nil || estimate < 0 {
		return 0, false
	}
	return int(estimate), true
}

func (s *session) Commit() error {
	if s.done {
		return nil
	}
	s.done = true
	return s.tx.Commit()
}

func (s *session) Rollback() error {
	if s.done {
		return nil
	}
	s.done = true
	return s.tx.Rollback()
}

// encodeAttribute is the varchar encoding attribute values are stored and
// filtered with.
func encodeAttribute(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	default:
		return fmt.Sprint(v)
	}
}

type instance struct {
	session    *session
	class      *rest.Class
	id         string
	timestamp  time.Time
	attributes map[string]interface{}
}

func (i *instance) Class() string {
	return i.class.Name
}

func (i *instance) ID() string {
	return i.id
}

func (i *instance) Attributes() map[string]interface{} {
	attributes := make(map[string]interface{}, len(i.attributes))
	for name, value := range i.attributes {
		attributes[name] = value
	}
	return attributes
}

func (i *instance) Set(attribute string, value interface{}) error {
	if !i.class.HasAttribute(attribute) {
		return fmt.Errorf("unknown attribute %s on class %s", attribute, i.class.Name)
	}
	encoded := encodeAttribute(value)
	query := fmt.Sprintf("UPDATE %s SET %s = $1 WHERE %s = $2;",
		i.session.store.table(i.class.Name), pq.QuoteIdentifier(attribute),
		pq.QuoteIdentifier(i.class.IDParam()))
	if _, err := i.session.tx.Exec(query, encoded, i.id); err != nil {
		return constraintError(err)
	}
	i.attributes[attribute] = encoded
	return nil
}

func (i *instance) Meta() map[string]interface{} {
	return map[string]interface{}{
		"timestamp": i.timestamp.UTC().Format(time.RFC3339Nano),
	}
}

func (i *instance) Relation(name string) (rest.RelationValue, error) {
	rel, ok := i.class.Relationship(name)
	if !ok {
		return rest.RelationValue{}, fmt.Errorf("unknown relationship %s on class %s", name, i.class.Name)
	}

	if rel.Direction.ToOne() {
		query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1;",
			pq.QuoteIdentifier(refColumn(rel)), i.session.store.table(i.class.Name),
			pq.QuoteIdentifier(i.class.IDParam()))
		var ref sql.NullString
		if err := i.session.tx.QueryRow(query, i.id).Scan(&ref); err != nil {
			return rest.RelationValue{}, err
		}
		value := rest.RelationValue{Kind: rest.RelationSingle}
		if ref.Valid {
			child, err := i.session.Lookup(rel.Child.Name, ref.String)
			if err != nil {
				return rest.RelationValue{}, err
			}
			value.Instance = child
		}
		return value, nil
	}

	// to-many relations come back lazy: the membership subquery only runs
	// when the caller materializes the members
	return rest.RelationValue{Kind: rest.RelationLazy, Query: &query{
		session: i.session,
		class:   rel.Child,
		member:  &memberClause{parent: i.class, rel: rel, parentID: i.id},
		limit:   -1,
	}}, nil
}

func (i *instance) SetRelation(name string, child rest.Instance) error {
	rel, ok := i.class.Relationship(name)
	if !ok {
		return fmt.Errorf("unknown relationship %s on class %s", name, i.class.Name)
	}
	if !rel.Direction.ToOne() {
		return fmt.Errorf("relationship %s on class %s holds more than one peer", name, i.class.Name)
	}
	var ref interface{}
	if child != nil {
		if child.Class() != rel.Child.Name {
			return fmt.Errorf("relationship %s expects class %s", name, rel.Child.Name)
		}
		ref = child.ID()
	}
	query := fmt.Sprintf("UPDATE %s SET %s = $1 WHERE %s = $2;",
		i.session.store.table(i.class.Name), pq.QuoteIdentifier(refColumn(rel)),
		pq.QuoteIdentifier(i.class.IDParam()))
	if _, err := i.session.tx.Exec(query, ref, i.id); err != nil {
		return constraintError(err)
	}
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
	parentColumn, childColumn := joinColumns(i.class, rel)
	table := i.session.store.joinTable(i.class, rel)

	deleteQuery := fmt.Sprintf("DELETE FROM %s WHERE %s = $1;",
		table, pq.QuoteIdentifier(parentColumn))
	if _, err := i.session.tx.Exec(deleteQuery, i.id); err != nil {
		return constraintError(err)
	}
	insertQuery := fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES ($1, $2) ON CONFLICT DO NOTHING;",
		table, pq.QuoteIdentifier(parentColumn), pq.QuoteIdentifier(childColumn))
	for _, child := range children {
		if child.Class() != rel.Child.Name {
			return fmt.Errorf("relationship %s expects class %s", name, rel.Child.Name)
		}
		if _, err := i.session.tx.Exec(insertQuery, i.id, child.ID()); err != nil {
			return constraintError(err)
		}
	}
	return nil
}
