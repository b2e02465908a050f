package website

import (
	"net/http"
	"net/http/pprof"
	"regexp"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewWebsiteRoutes(merger PostMerger) http.Handler {
	router := &Router{}
	routes := RouteBuilder{
		Router: router,
		Middlewares: []Middleware{
			trackRequestPerf,
			logContextErrorsMiddleware,
			panicCatcherMiddleware,
		},
	}

	admin := routes.Group(regexp.MustCompile(`^/admin`), needsActor)
	admin.POST(regexp.MustCompile(`^/posts/merge$`), APIMergePosts(merger))

	routes.GET(regexp.MustCompile(`^/healthz$`), func(c *RequestContext) ResponseData {
		var res ResponseData
		res.Write([]byte("ok"))
		return res
	})

	routes.AnyMethod(regexp.MustCompile(`^`), FourOhFour)

	return router
}

// Metrics and profiling, for the private address only.
func NewPrivateRoutes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return mux
}
