package router

import (
	"net/http"
	"path"
	"slices"

	"github.com/gin-gonic/gin"
)

// APIPrefix is the mount point of the versioned ledger API
const APIPrefix = "/api/v1"

// RouteRegistrar mounts its routes on a group
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Resource is the route table of one ledger resource. Guards run before
// every handler of the resource; per-route guards are passed with the handler.
type Resource struct {
	name   string
	prefix string
	guards []gin.HandlerFunc
	routes []route
}

type route struct {
	method   string
	path     string
	handlers []gin.HandlerFunc
}

// NewResource starts an empty table mounted at prefix
func NewResource(name, prefix string) *Resource {
	return &Resource{name: name, prefix: prefix}
}

// Use adds guards to every route of the resource
func (r *Resource) Use(guards ...gin.HandlerFunc) *Resource {
	r.guards = append(r.guards, guards...)
	return r
}

func (r *Resource) add(method, p string, handlers []gin.HandlerFunc) *Resource {
	r.routes = append(r.routes, route{method: method, path: p, handlers: handlers})
	return r
}

func (r *Resource) GET(p string, h ...gin.HandlerFunc) *Resource {
	return r.add(http.MethodGet, p, h)
}

func (r *Resource) POST(p string, h ...gin.HandlerFunc) *Resource {
	return r.add(http.MethodPost, p, h)
}

func (r *Resource) PUT(p string, h ...gin.HandlerFunc) *Resource {
	return r.add(http.MethodPut, p, h)
}

func (r *Resource) PATCH(p string, h ...gin.HandlerFunc) *Resource {
	return r.add(http.MethodPatch, p, h)
}

// Name returns the resource name
func (r *Resource) Name() string { return r.name }

// RegisterRoutes mounts the table under rg
func (r *Resource) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group(r.prefix, r.guards...)
	for _, rt := range r.routes {
		g.Handle(rt.method, rt.path, rt.handlers...)
	}
}

// Endpoints lists "METHOD /prefix/path" for every route, relative to the
// API mount point
func (r *Resource) Endpoints() []string {
	out := make([]string, 0, len(r.routes))
	for _, rt := range r.routes {
		out = append(out, rt.method+" "+path.Join(r.prefix, rt.path))
	}
	return out
}

// Mount registers every registrar on the API group and returns the sorted
// endpoint list of those that describe themselves
func Mount(api *gin.RouterGroup, registrars ...RouteRegistrar) []string {
	var endpoints []string
	for _, reg := range registrars {
		reg.RegisterRoutes(api)
		if res, ok := reg.(*Resource); ok {
			endpoints = append(endpoints, res.Endpoints()...)
		}
	}
	slices.Sort(endpoints)
	return endpoints
}
