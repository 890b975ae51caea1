package main

import (
	"context"
	"fmt"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/ki1r0y/gallery/cmd/gallery/container"
	"github.com/ki1r0y/gallery/cmd/gallery/routes"
	"github.com/ki1r0y/gallery/common/bootstrap"
	"github.com/ki1r0y/gallery/common/server"
)

func main() {
	ctx := context.Background()

	// Bootstrap common components (store, blobs, cache, logger)
	components, err := bootstrap.Setup(ctx, "gallery")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap gallery: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	// Initialize service container (singleton pattern - all services created once)
	serviceContainer, err := container.NewContainer(components)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize service container: %v\n", err)
		os.Exit(1)
	}

	e := setupEcho()
	setupMiddleware(e)
	setupHealthCheck(e)
	routes.Register(e, serviceContainer)

	// Start with graceful shutdown
	srv := server.New("gallery", components.Config.Service.Port, e, components.Logger)
	if err := srv.Start(); err != nil {
		components.Logger.Error("Server error", "error", err)
		os.Exit(1)
	}
}

// setupEcho initializes the Echo server with basic configuration
func setupEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	return e
}

// setupMiddleware configures all middleware for the Echo server
func setupMiddleware(e *echo.Echo) {
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestID())
}

// setupHealthCheck registers the health check endpoint
func setupHealthCheck(e *echo.Echo) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{
			"status":  "ok",
			"service": "gallery",
		})
	})
}
