package rest

import (
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// IncludeAll is the include sentinel meaning every directly declared
// relationship, expanded recursively one more level.
const IncludeAll = "+all"

// SortKey is one (column, direction) sort directive.
type SortKey struct {
	Column     string
	Descending bool
}

// Directives is the immutable, per-request structure holding the parsed
// filter, sort, pagination and include query parameters. It is parsed once
// per request and never persisted.
type Directives struct {
	// Filters maps column name to the set of allowed values. Values within
	// a column are ORed via set membership; distinct columns are combined by
	// the query engine.
	Filters map[string][]string
	// FilterColumns holds the filtered column names in deterministic order.
	FilterColumns []string
	// Sort is the ordered list of sort keys.
	Sort []SortKey
	// Offset and Limit are the page window. Limit defaults to the
	// configured unlimited sentinel.
	Offset int
	Limit  int
	// Include is the raw include specification: comma-separated dotted
	// relationship paths, possibly containing the IncludeAll sentinel.
	Include string

	values url.Values
}

var filterKeyPattern = regexp.MustCompile(`^filter\[(\w+)\]$`)

// parseDirectives turns the raw query-string mapping into structured
// directives. It has no I/O side effects and never fails: malformed values
// are silently coerced to their defaults; filter columns that do not name a
// declared attribute are deferred to the query engine.
func parseDirectives(values url.Values, unlimited int) Directives {
	d := Directives{
		Filters: map[string][]string{},
		Limit:   unlimited,
		values:  values,
	}

	for key, array := range values {
		if len(array) == 0 {
			continue
		}
		value := array[0]
		if m := filterKeyPattern.FindStringSubmatch(key); m != nil {
			column := m[1]
			d.Filters[column] = strings.Split(value, ",")
			d.FilterColumns = append(d.FilterColumns, column)
			continue
		}
		switch key {
		case "sort":
			for _, column := range strings.Split(value, ",") {
				if strings.HasPrefix(column, "-") {
					d.Sort = append(d.Sort, SortKey{Column: column[1:], Descending: true})
				} else {
					d.Sort = append(d.Sort, SortKey{Column: column})
				}
			}
		case "page[offset]":
			offset, err := strconv.Atoi(value)
			if err != nil || offset < 0 {
				offset = 0
			}
			d.Offset = offset
		case "page[limit]":
			limit, err := strconv.Atoi(value)
			if err != nil {
				// invalid value is ignored, the default is kept
				break
			}
			d.Limit = limit
		case "include":
			d.Include = value
		}
	}
	sort.Strings(d.FilterColumns)
	return d
}

// resolveLimit re-resolves page[limit] from the raw request parameters. A
// present value that is not a positive integer is a validation error, per
// the assembler's contract; the resolved limit also bounds the inclusion
// resolver and must never disable it.
func (d Directives) resolveLimit(unlimited int) (int, error) {
	value := d.values.Get("page[limit]")
	if value == "" {
		return unlimited, nil
	}
	limit, err := strconv.Atoi(value)
	if err != nil || limit < 1 {
		return 0, ValidationError("page[limit] error")
	}
	return limit, nil
}

// link formats a pagination link URL for the given page window, carrying all
// other request parameters along.
func (d Directives) link(r *http.Request, offset, limit int) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	var args []string
	for key, array := range d.values {
		if key == "page[offset]" || key == "page[limit]" || len(array) == 0 {
			continue
		}
		// values were decoded from the request and must be re-encoded, or
		// carried sentinels like +all turn into spaces on the way back
		args = append(args, key+"="+url.QueryEscape(array[0]))
	}
	sort.Strings(args)
	args = append(args,
		fmt.Sprintf("page[offset]=%d", offset),
		fmt.Sprintf("page[limit]=%d", limit))
	return scheme + "://" + r.Host + r.URL.Path + "?" + strings.Join(args, "&")
}
