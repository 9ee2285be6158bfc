package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/tuitionhub/backend/internal/services"
)

const maxAuditBody = 2000

var sensitiveKeys = map[string]struct{}{
	"password":         {},
	"old_password":     {},
	"new_password":     {},
	"token":            {},
	"secret":           {},
	"api_key":          {},
	"sendgrid_api_key": {},
}

// AuditLog records admin write requests (POST, PUT, DELETE) to system_logs.
func AuditLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		method := c.Request.Method
		if method != http.MethodPost && method != http.MethodPut && method != http.MethodDelete {
			c.Next()
			return
		}

		var body string
		if c.Request.Body != nil {
			raw, _ := io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewReader(raw))
			body = maskBody(raw)
		}

		c.Next()

		status := c.Writer.Status()
		module, action := routeAction(c.FullPath(), method)

		var uid *uint
		if id := GetUserID(c); id > 0 {
			uid = &id
		}

		outcome := "ok"
		if status >= 400 {
			outcome = "failed"
		}

		extra := map[string]interface{}{
			"method":     method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"body":       body,
			"user_agent": c.Request.UserAgent(),
		}
		message := fmt.Sprintf("[Audit] %s %s %s: %s", GetUsername(c), method, c.Request.URL.Path, outcome)
		if status >= 400 {
			services.LogWarning(module, action, message, uid, c.ClientIP(), extra)
			return
		}
		services.LogInfo(module, action, message, uid, c.ClientIP(), extra)
	}
}

// routeAction turns "/api/monthly-reports/:id" + PUT into ("monthly-reports", "update").
func routeAction(fullPath, method string) (module, action string) {
	path := strings.TrimPrefix(fullPath, "/api/")
	module = strings.SplitN(path, "/", 2)[0]
	if module == "" {
		module = "unknown"
	}

	switch method {
	case http.MethodPost:
		action = "create"
		if strings.HasSuffix(path, "/generate") {
			action = "generate"
		} else if strings.HasSuffix(path, "/send") {
			action = "send"
		}
	case http.MethodPut:
		action = "update"
	case http.MethodDelete:
		action = "delete"
	default:
		action = strings.ToLower(method)
	}
	return module, action
}

// maskBody blanks sensitive fields of a JSON object body and truncates the result.
// Non-JSON bodies are kept only as their length.
func maskBody(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return fmt.Sprintf("<%d bytes>", len(raw))
	}
	for key := range fields {
		if _, ok := sensitiveKeys[strings.ToLower(key)]; ok {
			fields[key] = "***"
		}
	}

	masked, err := json.Marshal(fields)
	if err != nil {
		return ""
	}
	if len(masked) > maxAuditBody {
		n := maxAuditBody
		for n > 0 && !utf8.RuneStart(masked[n]) {
			n--
		}
		return string(masked[:n]) + "...[truncated]"
	}
	return string(masked)
}
