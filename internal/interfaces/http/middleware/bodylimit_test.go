package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/erp/stockledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestBodyLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(BodyLimit(64))
	router.POST("/stock/movements", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.String(http.StatusBadRequest, "body too large")
			return
		}
		c.String(http.StatusOK, "ok")
	})
	router.GET("/stock/balance", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	tests := []struct {
		name          string
		method        string
		path          string
		body          string
		contentLength int64
		wantCode      int
		wantBody      string
	}{
		{"within limit", http.MethodPost, "/stock/movements", `{"qty":"1"}`, 11, http.StatusOK, "ok"},
		{"declared too large", http.MethodPost, "/stock/movements", strings.Repeat("x", 200), 200, http.StatusRequestEntityTooLarge, dto.ErrCodeRequestTooLarge},
		{"streamed too large", http.MethodPost, "/stock/movements", strings.Repeat("x", 100), -1, http.StatusBadRequest, "body too large"},
		{"no body", http.MethodGet, "/stock/balance", "", 0, http.StatusOK, "ok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			req.ContentLength = tt.contentLength
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}
