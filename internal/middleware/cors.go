package middleware

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/lalith-99/echoforum/internal/config"
)

// CORS answers preflight requests and stamps the allow headers.
func CORS(cfg *config.Config) gin.HandlerFunc {
	corsConfig := cors.Config{
		AllowMethods:     cfg.CORSAllowMethods,
		AllowHeaders:     cfg.CORSAllowHeaders,
		AllowCredentials: cfg.CORSAllowCredentials,
		MaxAge:           cfg.CORSMaxAge,
	}
	if len(cfg.CORSAllowOrigins) == 1 && cfg.CORSAllowOrigins[0] == "*" {
		// gin-contrib/cors rejects a wildcard together with credentials,
		// so echo the request origin instead.
		if cfg.CORSAllowCredentials {
			corsConfig.AllowOriginFunc = func(string) bool { return true }
		} else {
			corsConfig.AllowAllOrigins = true
		}
	} else {
		corsConfig.AllowOrigins = cfg.CORSAllowOrigins
	}
	return cors.New(corsConfig)
}
