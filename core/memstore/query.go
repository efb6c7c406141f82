package memstore

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/tomaswangen/safrs/core/rest"
)

type sortKey struct {
	column     string
	descending bool
}

// query is an immutable in-memory query: filters and unions resolve the
// candidate id list eagerly, sorting and slicing apply on materialization.
type query struct {
	session *session
	class   string
	data    *classData
	ids     []string
	keys    []sortKey
	offset  int
	limit   int
	sliced  bool
	err     error
}

func (q *query) derive() *query {
	d := *q
	d.ids = append([]string(nil), q.ids...)
	d.keys = append([]sortKey(nil), q.keys...)
	return &d
}

func (q *query) FilterIn(column string, values []string) rest.Query {
	if q.err != nil {
		return q
	}
	allowed := make(map[string]struct{}, len(values))
	for _, v := range values {
		allowed[v] = struct{}{}
	}
	d := q.derive()
	filtered := d.ids[:0]
	for _, id := range d.ids {
		if _, ok := allowed[valueString(q.data.objects[id].attributes[column])]; ok {
			filtered = append(filtered, id)
		}
	}
	d.ids = filtered
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
	d := q.derive()
	seen := make(map[string]struct{}, len(d.ids))
	for _, id := range d.ids {
		seen[id] = struct{}{}
	}
	for _, id := range o.ids {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			d.ids = append(d.ids, id)
		}
	}
	return d
}

func (q *query) OrderBy(column string, descending bool) rest.Query {
	if q.err != nil {
		return q
	}
	d := q.derive()
	d.keys = append(d.keys, sortKey{column: column, descending: descending})
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

func (q *query) Count() (int, error) {
	if q.err != nil {
		return 0, q.err
	}
	return len(q.ids), nil
}

func (q *query) All() ([]rest.Instance, error) {
	if q.err != nil {
		return nil, q.err
	}
	ids := append([]string(nil), q.ids...)

	// apply sort keys in the order given; ties on an earlier key are broken
	// by the later ones, hence the stable sorts in reverse order
	for i := len(q.keys) - 1; i >= 0; i-- {
		key := q.keys[i]
		sort.SliceStable(ids, func(a, b int) bool {
			c := compareValues(
				q.data.objects[ids[a]].attributes[key.column],
				q.data.objects[ids[b]].attributes[key.column])
			if key.descending {
				return c > 0
			}
			return c < 0
		})
	}

	if q.sliced {
		if q.offset >= len(ids) {
			ids = nil
		} else {
			ids = ids[q.offset:]
		}
		if q.limit >= 0 && q.limit < len(ids) {
			ids = ids[:q.limit]
		}
	}

	instances := make([]rest.Instance, 0, len(ids))
	for _, id := range ids {
		instances = append(instances, q.session.instance(q.class, q.data.objects[id]))
	}
	return instances, nil
}

// valueString is the string encoding attribute values are compared with for
// membership filters.
func valueString(value interface{}) string {
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

// compareValues orders attribute values: numerically when both sides are
// numbers, lexically on their string encoding otherwise. Missing values sort
// first.
func compareValues(a, b interface{}) int {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	as, bs := valueString(a), valueString(b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}

func toFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}
