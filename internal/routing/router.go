package routing

import (
	"net/http"
	"runtime/debug"
	"slices"
	"strings"
)

// PanicHook observes recovered handler panics.
type PanicHook func(r *http.Request, recovered any, stack []byte)

// Router dispatches on exact path then method. Unknown paths and methods get
// an error body shaped for the path's route class.
type Router struct {
	classifier *Classifier
	paths      map[string]*pathRoutes
	onPanic    PanicHook
}

type pathRoutes struct {
	rc      RouteClass
	methods map[string]http.Handler
}

func NewRouter(classifier *Classifier) *Router {
	return &Router{
		classifier: classifier,
		paths:      make(map[string]*pathRoutes),
	}
}

func (r *Router) OnPanic(hook PanicHook) { r.onPanic = hook }

// Handle registers h for method on path. All methods on one path share the
// route class of the first registration.
func (r *Router) Handle(rc RouteClass, method string, path string, h http.Handler) {
	pr := r.paths[path]
	if pr == nil {
		pr = &pathRoutes{rc: rc, methods: make(map[string]http.Handler)}
		r.paths[path] = pr
	}
	pr.methods[method] = r.recovering(pr.rc, h)
}

func (r *Router) recovering(rc RouteClass, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if r.onPanic != nil {
				r.onPanic(req, rec, debug.Stack())
			}
			WriteError(w, req, rc, http.StatusInternalServerError, "internal_error", "internal error")
		}()
		h.ServeHTTP(w, req)
	})
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	pr, ok := r.paths[req.URL.Path]
	if !ok {
		WriteError(w, req, r.classifier.Classify(req.URL.Path), http.StatusNotFound, "rest_no_route", "No route was found matching the URL and request method.")
		return
	}
	h, ok := pr.lookup(req.Method)
	if !ok {
		w.Header().Set("Allow", pr.allow())
		WriteError(w, req, pr.rc, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	h.ServeHTTP(w, req)
}

// lookup serves HEAD from a GET handler when no HEAD handler exists.
func (pr *pathRoutes) lookup(method string) (http.Handler, bool) {
	if h, ok := pr.methods[method]; ok {
		return h, true
	}
	if method == http.MethodHead {
		h, ok := pr.methods[http.MethodGet]
		return h, ok
	}
	return nil, false
}

func (pr *pathRoutes) allow() string {
	methods := make([]string, 0, len(pr.methods)+1)
	for m := range pr.methods {
		methods = append(methods, m)
	}
	if _, ok := pr.methods[http.MethodGet]; ok && !slices.Contains(methods, http.MethodHead) {
		methods = append(methods, http.MethodHead)
	}
	slices.Sort(methods)
	return strings.Join(methods, ", ")
}
