// Package http provides HTTP server infrastructure including module
// registration.
package http

import (
	"context"

	"leadflow_backend/internal/events"
	"leadflow_backend/platform/config"
	"leadflow_backend/platform/logger"
)

// RouterConfig combines the config interfaces needed by the HTTP router.
type RouterConfig interface {
	config.HTTPConfig
	config.JWTConfig
	GetPublicRateLimit() float64
	GetPublicRateBurst() int
}

// HealthChecker exposes minimal functionality for readiness checks.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// App holds the fully initialized application dependencies. The composition
// root (main.go) populates it and hands it to the router.
type App struct {
	Config   RouterConfig
	Logger   *logger.Logger
	Health   HealthChecker
	EventBus events.Bus
	Modules  []Module
}
