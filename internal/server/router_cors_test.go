package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func preflight(router *gin.Engine, origin string) *httptest.ResponseRecorder {
	request := httptest.NewRequest(http.MethodOptions, "/api/claim-tile", http.NoBody)
	request.Header.Set("Origin", origin)
	request.Header.Set("Access-Control-Request-Method", http.MethodPost)
	request.Header.Set("Access-Control-Request-Headers", "Content-Type")

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	return recorder
}

func TestCORSMiddlewareAllowsAnyOriginByDefault(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(corsMiddleware(nil))
	router.POST("/api/claim-tile", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	recorder := preflight(router, "https://wall.example")
	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, recorder.Code)
	}
	if recorder.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("expected wildcard origin, got %q", recorder.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestCORSMiddlewareRestrictsConfiguredOrigins(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(corsMiddleware([]string{"https://wall.example"}))
	router.POST("/api/claim-tile", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	allowed := preflight(router, "https://wall.example")
	if allowed.Header().Get("Access-Control-Allow-Origin") != "https://wall.example" {
		t.Fatalf("expected configured origin to be echoed, got %q", allowed.Header().Get("Access-Control-Allow-Origin"))
	}

	rejected := preflight(router, "https://elsewhere.example")
	if rejected.Code != http.StatusForbidden {
		t.Fatalf("expected foreign origin to be rejected, got %d", rejected.Code)
	}
}
