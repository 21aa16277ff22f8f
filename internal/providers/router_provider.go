package providers

import (
	"net/http"

	"stride/internal/structures"
)

type RouterProviderInterface interface {
	Get(url string, handler http.Handler)
	Post(url string, handler http.Handler)
	GetRoutes() []structures.Route
	Paths() map[string]struct{}
}

type RouterProvider struct {
	logger Logger
	routes []structures.Route
}

func (rp *RouterProvider) Get(url string, handler http.Handler) {
	rp.add(http.MethodGet, url, handler)
}

func (rp *RouterProvider) Post(url string, handler http.Handler) {
	rp.add(http.MethodPost, url, handler)
}

func (rp *RouterProvider) add(method, url string, handler http.Handler) {
	rp.routes = append(rp.routes, structures.Route{
		Url:     url,
		Handler: methodHandler(method, rp.logged(handler)),
	})
}

func (rp *RouterProvider) GetRoutes() []structures.Route {
	return rp.routes
}

// Paths returns the registered URLs, used to bound metric label cardinality.
func (rp *RouterProvider) Paths() map[string]struct{} {
	paths := make(map[string]struct{}, len(rp.routes))
	for _, route := range rp.routes {
		paths[route.Url] = struct{}{}
	}
	return paths
}

func (rp *RouterProvider) logged(handler http.Handler) http.Handler {
	if rp.logger == nil {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rp.logger.Debugf(GetLogTypeByRequestType(r.Method), "%s %s from %s", r.Method, r.URL.RequestURI(), r.RemoteAddr)
		handler.ServeHTTP(w, r)
	})
}

func NewRouterProvider(logger Logger) RouterProviderInterface {
	return &RouterProvider{logger: logger}
}

func methodHandler(method string, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
