package router

import (
	"github.com/gin-gonic/gin"
)

// RouteRegistrar defines the interface for registering routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router manages HTTP route registration across the service's three
// surfaces: the versioned API, the webhook receiver and the root probes
type Router struct {
	engine     *gin.Engine
	apiVersion string

	api           []RouteRegistrar
	apiMiddleware []gin.HandlerFunc

	webhooks          []RouteRegistrar
	webhookMiddleware []gin.HandlerFunc

	root []RouteRegistrar
}

// RouterOption is a functional option for Router configuration
type RouterOption func(*Router)

// WithAPIVersion sets the API version prefix (e.g. "v1")
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// NewRouter creates a new Router instance
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{
		engine:     engine,
		apiVersion: "v1",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterAPI adds a registrar to the versioned API group
func (r *Router) RegisterAPI(registrar RouteRegistrar) *Router {
	r.api = append(r.api, registrar)
	return r
}

// UseAPI adds middleware to the versioned API group
func (r *Router) UseAPI(middleware ...gin.HandlerFunc) *Router {
	r.apiMiddleware = append(r.apiMiddleware, middleware...)
	return r
}

// RegisterWebhooks adds a registrar to the webhook group
func (r *Router) RegisterWebhooks(registrar RouteRegistrar) *Router {
	r.webhooks = append(r.webhooks, registrar)
	return r
}

// UseWebhooks adds middleware to the webhook group
func (r *Router) UseWebhooks(middleware ...gin.HandlerFunc) *Router {
	r.webhookMiddleware = append(r.webhookMiddleware, middleware...)
	return r
}

// RegisterRoot adds a registrar at the engine root (health probes)
func (r *Router) RegisterRoot(registrar RouteRegistrar) *Router {
	r.root = append(r.root, registrar)
	return r
}

// Setup registers all routes with the engine
func (r *Router) Setup() {
	api := r.engine.Group("/" + r.apiVersion)
	api.Use(r.apiMiddleware...)
	for _, registrar := range r.api {
		registrar.RegisterRoutes(api)
	}

	webhooks := r.engine.Group("/webhooks")
	webhooks.Use(r.webhookMiddleware...)
	for _, registrar := range r.webhooks {
		registrar.RegisterRoutes(webhooks)
	}

	root := r.engine.Group("")
	for _, registrar := range r.root {
		registrar.RegisterRoutes(root)
	}
}
