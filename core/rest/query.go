package rest

// filteredQuery transforms the base queryable collection of a class
// according to the request's filter directives.
//
// Every filter[col]=v1,v2 restricts to instances whose col value is in
// {v1,v2}. When multiple distinct columns are filtered, the base collection
// is the union of each single-column-filtered subquery. This preserves
// legacy behavior: the obvious alternative would be the intersection, but
// changing it needs product sign-off.
func (rc *requestContext) filteredQuery(class *Class) (Query, error) {
	base := rc.session.Collection(class.Name)

	var filtered []Query
	for _, column := range rc.directives.FilterColumns {
		if !class.HasAttribute(column) {
			return nil, ValidationError("unknown filter column '%s'", column)
		}
		filtered = append(filtered, base.FilterIn(column, rc.directives.Filters[column]))
	}
	if len(filtered) == 0 {
		return base, nil
	}
	result := filtered[0]
	for _, q := range filtered[1:] {
		result = result.Union(q)
	}
	return result, nil
}

// sortedQuery applies the sort keys in the order given. Unknown column names
// resolve to a no-op attribute reference; whether that fails is up to the
// underlying engine, at execution time.
func (rc *requestContext) sortedQuery(query Query) Query {
	for _, key := range rc.directives.Sort {
		query = query.OrderBy(key.Column, key.Descending)
	}
	return query
}

type pageWindow struct {
	offset, limit int
}

// paginate computes the pagination links for the query, materializes the
// current page and determines the total count.
//
// The total count is obtained from the class's cheap count operation when
// available, falling back to counting the filtered query directly.
func (rc *requestContext) paginate(query Query, class *Class) (map[string]string, []Instance, int, error) {
	offset := rc.directives.Offset
	limit := rc.directives.Limit
	if limit < 1 {
		return nil, nil, 0, ValidationError("page[limit] error")
	}
	pageBase := offset / limit * limit

	count, ok := rc.session.Count(class.Name)
	if !ok {
		var err error
		count, err = query.Count()
		if err != nil {
			return nil, nil, 0, err
		}
	}

	first := pageWindow{0, limit}
	last := pageWindow{count / limit * limit, limit}
	self := pageWindow{pageBase, limit}
	if self.offset > last.offset {
		self.offset = last.offset
	}
	next := pageWindow{offset + limit, limit}
	if next.offset > last.offset {
		next = last
	}
	prev := first
	if offset > limit {
		prev = pageWindow{offset - limit, limit}
	}

	// the self link reproduces the requested offset exactly; the omission
	// rule compares against the page-base-clamped self window
	links := map[string]string{
		"self": rc.directives.link(rc.r, offset, limit),
	}
	for name, window := range map[string]pageWindow{
		"first": first,
		"last":  last,
		"next":  next,
		"prev":  prev,
	} {
		if window == self {
			continue
		}
		links[name] = rc.directives.link(rc.r, window.offset, window.limit)
	}

	instances, err := query.Slice(offset, limit).All()
	if err != nil {
		return nil, nil, 0, err
	}
	return links, instances, count, nil
}

// collection runs the full query pipeline for a class: filter, sort,
// paginate.
func (rc *requestContext) collection(class *Class) (map[string]string, []Instance, int, error) {
	query, err := rc.filteredQuery(class)
	if err != nil {
		return nil, nil, 0, err
	}
	query = rc.sortedQuery(query)
	return rc.paginate(query, class)
}
