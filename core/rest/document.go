package rest

import "net/http"

// Version is the fixed jsonapi top-level member.
type Version struct {
	Version string `json:"version"`
}

// Resource is the serialized form of an instance: a JSON:API resource object.
type Resource struct {
	Type       string                 `json:"type"`
	ID         string                 `json:"id"`
	Attributes map[string]interface{} `json:"attributes"`
}

// ErrorObject is one entry of the errors array of an error envelope.
type ErrorObject struct {
	Detail string `json:"detail"`
}

// Document is the top-level JSON:API response envelope. The data member is
// always present, even when null or empty; errors, meta, links and included
// appear only when non-empty.
type Document struct {
	Data     interface{}            `json:"data"`
	Errors   []ErrorObject          `json:"errors,omitempty"`
	Meta     map[string]interface{} `json:"meta,omitempty"`
	JSONAPI  Version                `json:"jsonapi"`
	Links    map[string]string      `json:"links,omitempty"`
	Included []Resource             `json:"included,omitempty"`
}

// resourceObject serializes a single instance.
func resourceObject(instance Instance) Resource {
	return Resource{
		Type:       instance.Class(),
		ID:         instance.ID(),
		Attributes: instance.Attributes(),
	}
}

// resourceData converts primary data (nil, a single instance or a list) into
// its serialized form.
func resourceData(data interface{}) interface{} {
	switch d := data.(type) {
	case nil:
		return nil
	case Instance:
		if d == nil {
			return nil
		}
		return resourceObject(d)
	case []Instance:
		list := make([]Resource, 0, len(d))
		for _, instance := range d {
			list = append(list, resourceObject(instance))
		}
		return list
	}
	return data
}

// formatResponse assembles the final envelope: it re-resolves page[limit]
// (which must succeed), stores limit and count into the metadata, invokes the
// inclusion resolver with the request's include parameter (or the configured
// default) and fills in the top-level members.
func (rc *requestContext) formatResponse(data interface{}, meta map[string]interface{},
	links map[string]string, errors []ErrorObject, count int) (*Document, error) {

	limit, err := rc.directives.resolveLimit(rc.api.unlimited)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		meta = map[string]interface{}{}
	}
	meta["limit"] = limit
	meta["count"] = count

	include := rc.directives.Include
	if include == "" {
		include = rc.api.defaultInclude
	}
	included := rc.included(data, limit, include)
	includedObjects := make([]Resource, 0, len(included))
	for _, instance := range included {
		includedObjects = append(includedObjects, resourceObject(instance))
	}

	doc := &Document{
		Data:    resourceData(data),
		JSONAPI: Version{Version: "1.0"},
	}
	if len(errors) > 0 {
		doc.Errors = errors
	}
	if len(meta) > 0 {
		doc.Meta = meta
	}
	if len(links) > 0 {
		doc.Links = links
	}
	if len(includedObjects) > 0 {
		doc.Included = includedObjects
	}
	return doc, nil
}

// requestURL reconstructs the full URL of the request for self links.
func requestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}
