package sqlstore

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"github.com/tomaswangen/safrs/core/rest"
)

type attributeFilter struct {
	column string
	values []string
}

type sortOrder struct {
	column     string
	descending bool
}

// memberClause restricts a query over the child class to the members of one
// parent's to-many relationship.
type memberClause struct {
	parent   *rest.Class
	rel      *rest.Relationship
	parentID string
}

// query builds one SELECT over a class table. Filters collect into groups of
// AND-ed membership conditions; union concatenates groups into an OR. The
// query only talks to the database on materialization.
type query struct {
	session   *session
	class     *rest.Class
	member    *memberClause
	disjuncts [][]attributeFilter
	orders    []sortOrder
	offset    int
	limit     int
	sliced    bool
	err       error
}

func (q *query) derive() *query {
	d := *q
	d.disjuncts = make([][]attributeFilter, len(q.disjuncts))
	for n, group := range q.disjuncts {
		d.disjuncts[n] = append([]attributeFilter(nil), group...)
	}
	d.orders = append([]sortOrder(nil), q.orders...)
	return &d
}

func (q *query) FilterIn(column string, values []string) rest.Query {
	if q.err != nil {
		return q
	}
	d := q.derive()
	f := attributeFilter{column: column, values: append([]string(nil), values...)}
	if len(d.disjuncts) == 0 {
		d.disjuncts = [][]attributeFilter{{f}}
		return d
	}
	// distribute over an existing union: (A OR B) AND f == (A AND f) OR (B AND f)
	for n := range d.disjuncts {
		d.disjuncts[n] = append(d.disjuncts[n], f)
	}
	return d
}

func (q *query) Union(other rest.Query) rest.Query {
	if q.err != nil {
		return q
	}
	o, ok := other.(*query)
	if !ok || o.class != q.class {
		return &query{err: fmt.Errorf("cannot union queries over different classes")}
	}
	if o.err != nil {
		return o
	}
	// an unfiltered side matches everything, and so does the union
	if len(q.disjuncts) == 0 || len(o.disjuncts) == 0 {
		d := q.derive()
		d.disjuncts = nil
		return d
	}
	d := q.derive()
	for _, group := range o.disjuncts {
		d.disjuncts = append(d.disjuncts, append([]attributeFilter(nil), group...))
	}
	return d
}

func (q *query) OrderBy(column string, descending bool) rest.Query {
	if q.err != nil {
		return q
	}
	d := q.derive()
	d.orders = append(d.orders, sortOrder{column: column, descending: descending})
	return d
}

func (q *query) Slice(offset, limit int) rest.Query {
	if q.err != nil {
		return q
	}
	d := q.derive()
	d.offset = offset
	d.limit = limit
	d.sliced = true
	return d
}

// where renders the WHERE clause, appending parameters to params.
func (q *query) where(params *[]interface{}) string {
	var conditions []string
	if q.member != nil {
		parentColumn, childColumn := joinColumns(q.member.parent, q.member.rel)
		*params = append(*params, q.member.parentID)
		conditions = append(conditions, fmt.Sprintf("%s IN (SELECT %s FROM %s WHERE %s = $%d)",
			pq.QuoteIdentifier(q.class.IDParam()),
			pq.QuoteIdentifier(childColumn),
			q.session.store.joinTable(q.member.parent, q.member.rel),
			pq.QuoteIdentifier(parentColumn),
			len(*params)))
	}
	if len(q.disjuncts) > 0 {
		groups := make([]string, 0, len(q.disjuncts))
		for _, group := range q.disjuncts {
			clauses := make([]string, 0, len(group))
			for _, f := range group {
				*params = append(*params, pq.Array(f.values))
				clauses = append(clauses, fmt.Sprintf("%s = ANY($%d)",
					pq.QuoteIdentifier(f.column), len(*params)))
			}
			groups = append(groups, "("+strings.Join(clauses, " AND ")+")")
		}
		conditions = append(conditions, "("+strings.Join(groups, " OR ")+")")
	}
	if len(conditions) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conditions, " AND ")
}

func (q *query) Count() (int, error) {
	if q.err != nil {
		return 0, q.err
	}
	var params []interface{}
	countQuery := fmt.Sprintf("SELECT count(*) FROM %s%s;",
		q.session.store.table(q.class.Name), q.where(&params))
	var count int
	err := q.session.tx.QueryRow(countQuery, params...).Scan(&count)
	if err != nil {
		return 0, validationError(err)
	}
	return count, nil
}

func (q *query) All() ([]rest.Instance, error) {
	if q.err != nil {
		return nil, q.err
	}
	var params []interface{}
	selectQuery := fmt.Sprintf("SELECT %s FROM %s%s",
		selectList(q.class), q.session.store.table(q.class.Name), q.where(&params))
	if len(q.orders) > 0 {
		rendered := make([]string, 0, len(q.orders))
		for _, order := range q.orders {
			direction := " ASC"
			if order.descending {
				direction = " DESC"
			}
			rendered = append(rendered, pq.QuoteIdentifier(order.column)+direction)
		}
		selectQuery += " ORDER BY " + strings.Join(rendered, ", ")
	}
	if q.sliced {
		if q.limit >= 0 {
			selectQuery += " LIMIT " + strconv.Itoa(q.limit)
		}
		selectQuery += " OFFSET " + strconv.Itoa(q.offset)
	}
	selectQuery += ";"

	rows, err := q.session.tx.Query(selectQuery, params...)
	if err != nil {
		return nil, validationError(err)
	}
	defer rows.Close()

	var instances []rest.Instance
	for rows.Next() {
		i, err := q.session.scanInstance(q.class, rows)
		if err != nil {
			return nil, err
		}
		instances = append(instances, i)
	}
	if err := rows.Err(); err != nil {
		return nil, validationError(err)
	}
	if instances == nil {
		instances = []rest.Instance{}
	}
	return instances, nil
}
