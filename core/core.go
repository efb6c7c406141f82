package core

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Direction describes the directionality of a declared relationship between
// two resource classes. It determines the cardinality rules that are enforced
// when the relationship is mutated: a many-to-one relationship holds at most
// one peer, the other directions hold any number.
type Direction string

// all supported relationship directions
const (
	ManyToOne  Direction = "MANY_TO_ONE"
	OneToMany  Direction = "ONE_TO_MANY"
	ManyToMany Direction = "MANY_TO_MANY"
)

// ToOne returns true for relationships that hold at most a single peer.
func (d Direction) ToOne() bool {
	return d == ManyToOne
}

// UnmarshalJSON is a custom JSON unmarshaller
func (d *Direction) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*d = Direction(s)
	switch *d {
	case ManyToOne, OneToMany, ManyToMany:
		return nil
	default:
		return fmt.Errorf("%s is not a valid Direction", s)
	}
}

// Plural returns the plural form of the passed singular string.
//
// This is the algorithm used to create idiomatic REST routes
func Plural(singular string) string {
	if strings.HasSuffix(singular, "y") {
		return strings.TrimSuffix(singular, "y") + "ies"
	}
	if strings.HasSuffix(singular, "child") {
		return strings.TrimSuffix(singular, "child") + "children"
	}
	return singular + "s"
}
