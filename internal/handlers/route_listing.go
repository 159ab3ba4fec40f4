package handlers

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"text/tabwriter"

	"examprep/internal/observability"

	"github.com/gin-gonic/gin"
)

// RouteInfo represents information about a single route
type RouteInfo struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	HandlerName string `json:"handler_name"`
}

// RouteListingHandler generates automatic route listings
type RouteListingHandler struct {
	serviceName string
	routes      []RouteInfo
}

// NewRouteListingHandler creates a new route listing handler
func NewRouteListingHandler(serviceName string) *RouteListingHandler {
	return &RouteListingHandler{
		serviceName: serviceName,
		routes:      []RouteInfo{},
	}
}

// CollectRoutes extracts all routes from a Gin engine, sorted by path then method
func (h *RouteListingHandler) CollectRoutes(engine *gin.Engine) {
	h.routes = []RouteInfo{}
	for _, route := range engine.Routes() {
		if strings.HasPrefix(route.Path, "/debug/") {
			continue
		}
		h.routes = append(h.routes, RouteInfo{
			Method:      route.Method,
			Path:        route.Path,
			HandlerName: shortHandlerName(route.Handler),
		})
	}

	sort.Slice(h.routes, func(i, j int) bool {
		if h.routes[i].Path != h.routes[j].Path {
			return h.routes[i].Path < h.routes[j].Path
		}
		return h.routes[i].Method < h.routes[j].Method
	})
}

// Routes returns the collected routes
func (h *RouteListingHandler) Routes() []RouteInfo {
	return h.routes
}

// GetRouteListing serves the listing as JSON, or as an aligned text table when
// the client asks for text/plain
func (h *RouteListingHandler) GetRouteListing(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "get_route_listing")
	defer observability.FinishSpan(span, nil)

	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	if c.NegotiateFormat(gin.MIMEJSON, gin.MIMEPlain) == gin.MIMEPlain {
		c.String(http.StatusOK, h.text())
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"service": h.serviceName,
		"count":   len(h.routes),
		"routes":  h.routes,
	})
}

func (h *RouteListingHandler) text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d routes\n\n", h.serviceName, len(h.routes))
	w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	for _, route := range h.routes {
		fmt.Fprintf(w, "%s\t%s\t%s\n", route.Method, route.Path, route.HandlerName)
	}
	_ = w.Flush()
	return b.String()
}

// shortHandlerName trims the package path from a gin handler name,
// "examprep/internal/handlers.(*RecordsHandler).SaveRecord-fm" becomes "RecordsHandler.SaveRecord"
func shortHandlerName(name string) string {
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.Index(name, "."); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSuffix(name, "-fm")
	return strings.NewReplacer("(*", "", ")", "").Replace(name)
}
