package agents

import (
	"testing"

	"github.com/gin-gonic/gin"

	apphttp "leadflow_backend/internal/http"
)

func TestModule_RegisterRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	ctx := &apphttp.RouterContext{
		Engine:    engine,
		Public:    engine.Group("/api/v1/public"),
		Protected: engine.Group("/api/v1"),
	}

	m := NewModule(nil)
	if m.Name() != "agents" {
		t.Fatalf("unexpected module name %q", m.Name())
	}
	m.RegisterRoutes(ctx)

	want := map[string]bool{
		"GET /api/v1/agents":     false,
		"GET /api/v1/agents/:id": false,
	}
	for _, route := range engine.Routes() {
		key := route.Method + " " + route.Path
		if _, ok := want[key]; ok {
			want[key] = true
		}
	}
	for key, found := range want {
		if !found {
			t.Fatalf("route %s not registered", key)
		}
	}
}
