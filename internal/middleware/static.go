package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/lalith-99/echoforum/internal/storage"
)

// UploadHeaders guards user-uploaded files served from this origin. The
// browser must use the type the extension implies, stored pages run
// sandboxed, and anything but a raster image downloads instead of
// rendering.
func UploadHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Content-Security-Policy", "sandbox")
		if !storage.Inline(storage.TypeByExtension(c.Request.URL.Path)) {
			h.Set("Content-Disposition", "attachment")
		}
		c.Next()
	}
}
