package test

import (
	"net/http/httptest"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/celestiaorg/descgen/internal/api/middleware"
	"github.com/celestiaorg/descgen/pkg/api/v1/client"
	"github.com/celestiaorg/descgen/pkg/api/v1/routes"
)

// testClientTimeout is the timeout for test API client requests
const testClientTimeout = 5 * time.Second

// SetupServer starts the fake generation service behind a real HTTP server
// and points a real API client at it
func SetupServer(suite *Suite) {
	suite.Service = NewFakeService()

	suite.App = fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	suite.App.Use(middleware.Logger())
	routes.RegisterRoutes(suite.App, suite.Service)

	// Convert the Fiber app to an http.Handler
	suite.Server = httptest.NewServer(adaptor.FiberApp(suite.App))

	apiClient, err := client.NewClient(&client.Options{
		BaseURL: suite.Server.URL,
		Timeout: testClientTimeout,
	})
	suite.Require().NoError(err, "Failed to create API client")
	suite.APIClient = apiClient
}
