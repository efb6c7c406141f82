package rest

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/tomaswangen/safrs/core"
	"github.com/tomaswangen/safrs/core/logger"
	"github.com/tomaswangen/safrs/core/schema"
)

// defaultPageLimit is the "unlimited" page size sentinel applied when a
// request carries no page[limit].
const defaultPageLimit = 250

// API is the generic JSON:API resource backend. It derives collection, item,
// relationship and method endpoints from the declared resource classes and
// executes them against the configured store.
type API struct {
	registry       *Registry
	store          Store
	router         *mux.Router
	validator      *schema.Validator
	unlimited      int
	defaultInclude string
}

// Builder is a builder helper for the API
type Builder struct {
	// Config is the JSON description of all resource classes. This is mandatory.
	Config string
	// Store is the storage collaborator. This is mandatory.
	Store Store
	// Router is a mux router. This is mandatory.
	Router *mux.Router
	// Validator optionally validates attribute documents of classes that
	// declare a schema id.
	Validator *schema.Validator
	// PageLimit is the page size applied when a request carries no
	// page[limit]. Optional, defaults to 250.
	PageLimit int
	// DefaultInclude is the include specification applied when a request
	// has none. Optional.
	DefaultInclude string
}

// New realizes the actual API: it builds the resource-class registry and
// adds all routes to the router.
func New(bb *Builder) (*API, error) {
	registry, err := NewRegistry(bb.Config)
	if err != nil {
		return nil, err
	}
	if bb.Store == nil {
		panic("Store is missing")
	}
	if bb.Router == nil {
		panic("Router is missing")
	}
	limit := bb.PageLimit
	if limit == 0 {
		limit = defaultPageLimit
	}
	a := &API{
		registry:       registry,
		store:          bb.Store,
		router:         bb.Router,
		validator:      bb.Validator,
		unlimited:      limit,
		defaultInclude: bb.DefaultInclude,
	}
	a.handleRoutes(bb.Router)
	return a, nil
}

// MustNew is like New, but panics on configuration errors.
func MustNew(bb *Builder) *API {
	a, err := New(bb)
	if err != nil {
		panic(err)
	}
	return a
}

// Registry is the resource-class registry of this API.
func (a *API) Registry() *Registry {
	return a.registry
}

// HandleMethod binds the callable of a remote method declared in the
// configuration. Invoking a declared but unbound method fails closed.
func (a *API) HandleMethod(className, methodName string, fn MethodFunc) {
	class, ok := a.registry.Class(className)
	if !ok {
		logger.FromContext(nil).Fatalf("handle method for %s: no such class", className)
	}
	method, ok := class.methods[methodName]
	if !ok {
		logger.FromContext(nil).Fatalf("handle method %s.%s: method not declared", className, methodName)
	}
	method.Call = fn
	class.methods[methodName] = method
}

func (a *API) listPath(class *Class) string {
	return "/" + core.Plural(class.Name)
}

func (a *API) itemPath(class *Class, id string) string {
	return a.listPath(class) + "/" + id
}

func (a *API) relationshipPath(parent *Class, rel *Relationship, parentID, childID string) string {
	path := a.itemPath(parent, parentID) + "/" + rel.Key
	if childID != "" {
		path += "/" + childID
	}
	return path
}

// handleRoutes adds all necessary handlers for the registered classes.
// Literal method routes are registered before the item routes so that the
// router does not capture them as ids.
func (a *API) handleRoutes(router *mux.Router) {
	nillog := logger.FromContext(nil)
	nillog.Debugln("api: handle routes")

	for _, class := range a.registry.Classes() {
		listRoute := a.listPath(class)
		itemRoute := listRoute + "/{" + class.IDParam() + "}"

		ra := &resourceAPI{api: a, class: class}

		for _, name := range class.MethodNames() {
			ma := &methodAPI{api: a, class: class, name: name}
			nillog.Debugln("  handle method routes:", listRoute+"/"+name, "GET,POST")
			router.HandleFunc(listRoute+"/"+name, a.wrap(ma.invoke)).
				Methods(http.MethodOptions, http.MethodGet, http.MethodPost)
			router.HandleFunc(itemRoute+"/"+name, a.wrap(ma.invoke)).
				Methods(http.MethodOptions, http.MethodGet, http.MethodPost)
		}

		nillog.Debugln("  handle collection routes:", listRoute, "GET,POST")
		router.HandleFunc(listRoute, a.wrap(ra.get)).
			Methods(http.MethodOptions, http.MethodGet)
		router.HandleFunc(listRoute, a.wrap(ra.post)).
			Methods(http.MethodOptions, http.MethodPost)

		for _, rel := range class.Relationships() {
			rapi := newRelationshipAPI(a, class, rel)
			relList := itemRoute + "/" + rel.Key
			relItem := relList + "/{" + rapi.childParam + "}"
			nillog.Debugln("  handle relationship routes:", relList, "GET,PATCH,POST,DELETE")

			for _, route := range []string{relList, relItem} {
				router.HandleFunc(route, a.wrap(rapi.get)).
					Methods(http.MethodOptions, http.MethodGet)
				router.HandleFunc(route, a.wrap(rapi.patch)).
					Methods(http.MethodPatch)
				router.HandleFunc(route, a.wrap(rapi.post)).
					Methods(http.MethodPost)
				router.HandleFunc(route, a.wrap(rapi.delete)).
					Methods(http.MethodDelete)
			}
		}

		nillog.Debugln("  handle item routes:", itemRoute, "GET,PATCH,POST,DELETE")
		router.HandleFunc(itemRoute, a.wrap(ra.get)).
			Methods(http.MethodOptions, http.MethodGet)
		router.HandleFunc(itemRoute, a.wrap(ra.patch)).
			Methods(http.MethodPatch)
		router.HandleFunc(itemRoute, a.wrap(ra.post)).
			Methods(http.MethodPost)
		router.HandleFunc(itemRoute, a.wrap(ra.delete)).
			Methods(http.MethodDelete)
	}
}
