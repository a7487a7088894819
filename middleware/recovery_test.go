package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func recoveryRouter() *gin.Engine {
	router := gin.New()
	router.Use(RequestID())
	router.Use(Recovery())
	router.GET("/panic", func(c *gin.Context) {
		panic("nil contract")
	})
	router.GET("/stream", func(c *gin.Context) {
		c.SSEvent("text", "Olá")
		c.Writer.Flush()
		panic("stream broke")
	})
	router.GET("/normal", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})
	return router
}

func TestRecoveryBeforeResponse(t *testing.T) {
	req := httptest.NewRequest("GET", "/panic", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()

	recoveryRouter().ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("Expected status 500, got %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Expected JSON body: %v", err)
	}
	if body["error"] != "Erro interno do servidor" || body["request_id"] != "req-42" {
		t.Errorf("Unexpected body %v", body)
	}
}

func TestRecoveryAfterStreamStarted(t *testing.T) {
	w := httptest.NewRecorder()

	recoveryRouter().ServeHTTP(w, httptest.NewRequest("GET", "/stream", nil))

	if w.Code != http.StatusOK {
		t.Errorf("Expected the streamed status kept, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "Erro interno") {
		t.Errorf("Expected no JSON appended to the stream, got %q", w.Body.String())
	}
}

func TestRecoveryPassThrough(t *testing.T) {
	w := httptest.NewRecorder()

	recoveryRouter().ServeHTTP(w, httptest.NewRequest("GET", "/normal", nil))

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
}
