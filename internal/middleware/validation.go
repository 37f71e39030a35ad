package middleware

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// SanitizeString removes null bytes and control characters except newlines
// and tabs, then trims whitespace.
func SanitizeString(input string) string {
	input = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`).ReplaceAllString(input, "")
	return strings.TrimSpace(input)
}

// ValidateJSON binds the request body into v and runs struct validation,
// aborting with a 400 on failure.
func ValidateJSON(v interface{}) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := c.ShouldBindJSON(v); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid JSON format",
				"details": err.Error(),
			})
			c.Abort()
			return
		}

		if err := validate.Struct(v); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Validation failed",
				"details": err.Error(),
			})
			c.Abort()
			return
		}

		c.Set("validated_data", v)
		c.Next()
	}
}

// ValidateStruct runs struct validation directly for handlers that bind
// their own payloads.
func ValidateStruct(v interface{}) error {
	return validate.Struct(v)
}
