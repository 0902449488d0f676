package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// actions maps the ?action= query value to the handler serving it.
type actions map[string]gin.HandlerFunc

// byAction dispatches on ?action=, falling back to defaultAction when the
// parameter is absent. Unknown actions answer 400.
func byAction(defaultAction string, routes actions) gin.HandlerFunc {
	return func(c *gin.Context) {
		h, ok := routes[c.DefaultQuery("action", defaultAction)]
		if !ok {
			respondMessage(c, http.StatusBadRequest, "Invalid action")
			return
		}
		h(c)
	}
}

// chain runs handlers in order inside one route handler and stops at the
// first one that aborts. It lets a single action sit behind middleware
// while its siblings on the same path stay public. Used as the last
// handler of a route, so c.Next inside a middleware has nothing left to
// run.
func chain(handlers ...gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, h := range handlers {
			h(c)
			if c.IsAborted() {
				return
			}
		}
	}
}
