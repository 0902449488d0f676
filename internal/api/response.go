package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Every error body is {"message": "..."} so clients can show it as-is.

func respondMessage(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"message": message})
}

// serverError logs err with the request route and answers a generic 500.
// Internal error text never reaches the client.
func serverError(c *gin.Context, logger *zap.Logger, msg string, err error) {
	logger.Error(msg,
		zap.Error(err),
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.String("action", c.Query("action")),
	)
	respondMessage(c, http.StatusInternalServerError, "Server error")
}

var registerValidation sync.Once

// setupValidation makes validator errors name fields by their json or form
// tag and registers the notblank rule used on free-text fields.
func setupValidation() {
	registerValidation.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return f.Name
		})
		_ = v.RegisterValidation("notblank", validators.NotBlank)
	})
}

// accountGone answers a write whose author row was deleted after the
// request passed authentication; the insert failed on its foreign key.
func accountGone(c *gin.Context) {
	respondMessage(c, http.StatusUnauthorized, "Account no longer exists")
}

// bindJSON decodes and validates the body, answering 400 itself on failure.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondMessage(c, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBind(dst); err != nil {
		respondMessage(c, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		parts := make([]string, 0, len(ve))
		for _, fe := range ve {
			parts = append(parts, fieldMessage(fe))
		}
		return strings.Join(parts, "; ")
	}
	if errors.Is(err, io.EOF) {
		return "Missing required fields"
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return fmt.Sprintf("%s has the wrong type", typeErr.Field)
	}
	return "Invalid request body"
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

// queryID reads a uuid from the first query key that is set. ok is false
// when none is set. A malformed value parses as uuid.Nil, which matches no
// row and so answers 404 like any other unknown id.
func queryID(c *gin.Context, keys ...string) (id uuid.UUID, ok bool) {
	for _, k := range keys {
		raw := strings.TrimSpace(c.Query(k))
		if raw == "" {
			continue
		}
		parsed, err := uuid.Parse(raw)
		if err != nil {
			return uuid.Nil, true
		}
		return parsed, true
	}
	return uuid.Nil, false
}

// requestBaseURL is the scheme://host clients reached this server on,
// unless a public base URL is configured.
func requestBaseURL(c *gin.Context, configured string) string {
	if configured != "" {
		return strings.TrimRight(configured, "/")
	}
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
	}
	return scheme + "://" + c.Request.Host
}
