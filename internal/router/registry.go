package router

import "github.com/gin-gonic/gin"

// Registry mounts feature modules under the /bff prefix the frontend
// expects; a separate group serves the secret-guarded /internal surface.
type Registry struct {
	Engine      *gin.Engine
	BFF         *gin.RouterGroup
	Internal    *gin.RouterGroup
	middlewares []gin.HandlerFunc
	modules     []Module
}

func NewRegistry(engine *gin.Engine) *Registry {
	return &Registry{
		Engine:   engine,
		BFF:      engine.Group("/bff"),
		Internal: engine.Group("/internal"),
	}
}

func (r *Registry) Use(mw ...gin.HandlerFunc) {
	r.middlewares = append(r.middlewares, mw...)
}

func (r *Registry) Add(mod Module) {
	r.modules = append(r.modules, mod)
}

func (r *Registry) RegisterAll() {
	if len(r.middlewares) > 0 {
		r.BFF.Use(r.middlewares...)
	}
	for _, m := range r.modules {
		m.Register(r.BFF)
	}
}
