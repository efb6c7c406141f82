package rest

import (
	"net/http"
	"net/url"
	"strings"
	"testing"
)

func TestParseDirectives(t *testing.T) {
	values, _ := url.ParseQuery("filter[name]=a,b&filter[email]=c&sort=name,-age&page[offset]=10&page[limit]=5&include=books_read.reader")
	d := parseDirectives(values, 250)

	if len(d.Filters["name"]) != 2 || d.Filters["name"][0] != "a" || d.Filters["name"][1] != "b" {
		t.Fatal("unexpected name filter:", d.Filters["name"])
	}
	if len(d.Filters["email"]) != 1 || d.Filters["email"][0] != "c" {
		t.Fatal("unexpected email filter:", d.Filters["email"])
	}
	// deterministic order, regardless of map iteration
	if len(d.FilterColumns) != 2 || d.FilterColumns[0] != "email" || d.FilterColumns[1] != "name" {
		t.Fatal("unexpected filter columns:", d.FilterColumns)
	}
	if len(d.Sort) != 2 || d.Sort[0] != (SortKey{Column: "name"}) ||
		d.Sort[1] != (SortKey{Column: "age", Descending: true}) {
		t.Fatal("unexpected sort keys:", d.Sort)
	}
	if d.Offset != 10 || d.Limit != 5 {
		t.Fatal("unexpected page window:", d.Offset, d.Limit)
	}
	if d.Include != "books_read.reader" {
		t.Fatal("unexpected include:", d.Include)
	}
}

func TestParseDirectivesDefaults(t *testing.T) {
	d := parseDirectives(url.Values{}, 250)
	if d.Offset != 0 || d.Limit != 250 {
		t.Fatal("unexpected defaults:", d.Offset, d.Limit)
	}

	// malformed values coerce to their defaults at parse time
	values, _ := url.ParseQuery("page[offset]=abc&page[limit]=xyz")
	d = parseDirectives(values, 250)
	if d.Offset != 0 || d.Limit != 250 {
		t.Fatal("malformed page values should keep defaults:", d.Offset, d.Limit)
	}

	// a negative offset is no window at all and coerces to the start
	values, _ = url.ParseQuery("page[offset]=-5")
	d = parseDirectives(values, 250)
	if d.Offset != 0 {
		t.Fatal("negative page[offset] should coerce to 0:", d.Offset)
	}
}

func TestResolveLimit(t *testing.T) {
	values, _ := url.ParseQuery("page[limit]=7")
	d := parseDirectives(values, 250)
	limit, err := d.resolveLimit(250)
	if err != nil || limit != 7 {
		t.Fatal("unexpected limit:", limit, err)
	}

	d = parseDirectives(url.Values{}, 250)
	limit, err = d.resolveLimit(250)
	if err != nil || limit != 250 {
		t.Fatal("unexpected default limit:", limit, err)
	}

	// the assembler's contract: a present but non-integer value must fail
	values, _ = url.ParseQuery("page[limit]=abc")
	d = parseDirectives(values, 250)
	if _, err := d.resolveLimit(250); err == nil {
		t.Fatal("non-integer page[limit] accepted")
	}

	// zero or negative limits must fail too, they also bound the inclusion
	// resolver and would disable it
	for _, value := range []string{"0", "-1"} {
		values, _ = url.ParseQuery("page[limit]=" + value)
		d = parseDirectives(values, 250)
		if _, err := d.resolveLimit(250); err == nil {
			t.Fatal("non-positive page[limit] accepted:", value)
		}
	}
}

func TestPaginationLink(t *testing.T) {
	values, _ := url.ParseQuery("sort=name&page[offset]=4&page[limit]=2&filter[name]=a")
	d := parseDirectives(values, 250)
	r, _ := http.NewRequest(http.MethodGet, "http://example.com/users?"+values.Encode(), nil)
	r.Host = "example.com"

	link := d.link(r, 6, 2)
	if !strings.HasPrefix(link, "http://example.com/users?") {
		t.Fatal("unexpected link:", link)
	}
	// non-page parameters are carried along in deterministic order, the page
	// window comes last
	want := "http://example.com/users?filter[name]=a&sort=name&page[offset]=6&page[limit]=2"
	if link != want {
		t.Fatalf("unexpected link:\ngot  %s\nwant %s", link, want)
	}

	// carried values are re-encoded; a raw include sentinel or a space would
	// otherwise corrupt the link
	values, _ = url.ParseQuery("filter[title]=war and peace&include=%2Ball")
	d = parseDirectives(values, 250)
	r, _ = http.NewRequest(http.MethodGet, "http://example.com/books", nil)
	r.Host = "example.com"
	link = d.link(r, 0, 10)
	want = "http://example.com/books?filter[title]=war+and+peace&include=%2Ball&page[offset]=0&page[limit]=10"
	if link != want {
		t.Fatalf("unexpected link:\ngot  %s\nwant %s", link, want)
	}
}

type fakeInstance struct {
	class string
	id    string
}

func (f *fakeInstance) Class() string                       { return f.class }
func (f *fakeInstance) ID() string                          { return f.id }
func (f *fakeInstance) Attributes() map[string]interface{}  { return nil }
func (f *fakeInstance) Set(string, interface{}) error       { return nil }
func (f *fakeInstance) Meta() map[string]interface{}        { return nil }
func (f *fakeInstance) Relation(string) (RelationValue, error) {
	return RelationValue{}, nil
}
func (f *fakeInstance) SetRelation(string, Instance) error       { return nil }
func (f *fakeInstance) ReplaceRelation(string, []Instance) error { return nil }

func TestIncludeSetDeduplicates(t *testing.T) {
	set := newIncludeSet()
	a := &fakeInstance{class: "user", id: "1"}
	b := &fakeInstance{class: "book", id: "1"}

	if !set.add(a) {
		t.Fatal("first add should report new")
	}
	if set.add(a) {
		t.Fatal("second add should report seen")
	}
	if !set.add(b) {
		t.Fatal("same id on another class is a different instance")
	}
	if len(set.items) != 2 {
		t.Fatal("unexpected set size:", len(set.items))
	}
}

func TestRelationValueMembers(t *testing.T) {
	a := &fakeInstance{class: "user", id: "1"}
	b := &fakeInstance{class: "user", id: "2"}

	single := RelationValue{Kind: RelationSingle}
	members, err := single.Members(0)
	if err != nil || len(members) != 0 {
		t.Fatal("empty single should have no members")
	}
	single.Instance = a
	members, _ = single.Members(0)
	if len(members) != 1 || !sameInstance(members[0], a) {
		t.Fatal("unexpected single members:", members)
	}

	eager := RelationValue{Kind: RelationEager, Items: []Instance{a, b}}
	members, _ = eager.Members(1)
	if len(members) != 1 {
		t.Fatal("limit not applied:", members)
	}
	members, _ = eager.Members(0)
	if len(members) != 2 {
		t.Fatal("limit 0 should mean no bound:", members)
	}

	if ok, _ := eager.Contains(b); !ok {
		t.Fatal("b should be a member")
	}
	if ok, _ := eager.Contains(&fakeInstance{class: "book", id: "2"}); ok {
		t.Fatal("class is part of instance identity")
	}
}
