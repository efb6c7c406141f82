package rest

import "strings"

// includeSet is the deduplicating accumulator of the inclusion resolver,
// keyed by instance identity. It preserves insertion order so that responses
// are deterministic.
type includeSet struct {
	seen  map[string]struct{}
	items []Instance
}

func newIncludeSet() *includeSet {
	return &includeSet{seen: map[string]struct{}{}}
}

// add inserts the instance and reports whether it was newly added.
func (s *includeSet) add(instance Instance) bool {
	key := instanceKey(instance)
	if _, ok := s.seen[key]; ok {
		return false
	}
	s.seen[key] = struct{}{}
	s.items = append(s.items, instance)
	return true
}

// included resolves the request's include specification against the primary
// data and returns the deduplicated set of related resources. The resolver
// never fails a request: shape anomalies are logged and skipped.
//
// The IncludeAll sentinel expands to every relationship declared on the
// instance's class and recurses exactly one more level beyond the first
// relationship hop; together with the per-relationship size limit and the
// accumulator set this bounds the resolution on cyclic graphs.
func (rc *requestContext) included(data interface{}, limit int, include string) []Instance {
	set := newIncludeSet()
	rc.resolveInclude(data, limit, include, set, 1)
	return set.items
}

func (rc *requestContext) resolveInclude(data interface{}, limit int, include string,
	set *includeSet, depth int) {
	if include == "" || data == nil {
		return
	}

	if instances, ok := data.([]Instance); ok {
		for _, instance := range instances {
			rc.resolveInclude(instance, limit, include, set, depth)
		}
		return
	}

	instance, ok := data.(Instance)
	if !ok {
		return
	}
	class, ok := rc.api.registry.Class(instance.Class())
	if !ok {
		return
	}

	includes := strings.Split(include, ",")
	all := false
	for _, token := range includes {
		if token == IncludeAll {
			all = true
		}
	}
	if all {
		for _, rel := range class.Relationships() {
			includes = append(includes, rel.Key)
		}
	}

	requested := map[string]struct{}{}
	for _, token := range includes {
		if token == IncludeAll {
			continue
		}
		if _, ok := requested[token]; ok {
			continue
		}
		requested[token] = struct{}{}

		relationship := token
		nested := ""
		if i := strings.Index(token, "."); i >= 0 {
			relationship = token[:i]
			nested = token[i+1:]
		}

		if _, ok := class.Relationship(relationship); !ok {
			continue
		}

		value, err := instance.Relation(relationship)
		if err != nil {
			rc.rlog.WithError(err).Errorf("failed to resolve included for %s", relationship)
			continue
		}

		var added []Instance
		switch value.Kind {
		case RelationSingle:
			if value.Instance != nil && set.add(value.Instance) {
				added = append(added, value.Instance)
			}
		case RelationEager, RelationLazy:
			members, err := value.Members(limit)
			if err != nil {
				rc.rlog.WithError(err).Errorf("failed to add included for %s", relationship)
				continue
			}
			for _, member := range members {
				if set.add(member) {
					added = append(added, member)
				}
			}
		default:
			rc.rlog.Errorf("unexpected relationship shape for %s", relationship)
		}

		if all && depth > 0 {
			for _, member := range added {
				rc.resolveInclude(member, limit, IncludeAll, set, depth-1)
			}
		} else if nested != "" {
			for _, member := range added {
				rc.resolveInclude(member, limit, nested, set, depth)
			}
		}
	}
}
