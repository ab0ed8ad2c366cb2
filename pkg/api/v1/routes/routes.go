// Package routes defines the generation service routes and URL structure
package routes

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
)

/*

To keep this file organized, routes should be organized in the following way:

1. Collection routes before item routes (i.e. /jobs before /jobs/:id)
2. Order routes in GET, POST order.
3. For clarity, naming should match the action (i.e. GetJob, CancelJob)

*/

// API base configuration
const (
	// DefaultPort is the default port of the generation service
	DefaultPort = "3000"
	// APIPrefix is the prefix for all API endpoints
	APIPrefix = "/api"
)

// DefaultBaseURL is the default base URL for the API
var DefaultBaseURL = fmt.Sprintf("http://localhost:%s", DefaultPort)

// Route patterns, in the ":param" notation understood by fiber
const (
	JobsPath      = APIPrefix + "/jobs"
	JobPath       = JobsPath + "/:id"
	JobItemsPath  = JobPath + "/products"
	CancelJobPath = JobPath + "/cancel"
)

// Route names for lookup
const (
	HealthCheck  = "HealthCheck"
	ListJobs     = "ListJobs"
	CreateJob    = "CreateJob"
	GetJob       = "GetJob"
	ListJobItems = "ListJobItems"
	CancelJob    = "CancelJob"
)

// JobHandlers serves the job endpoints
type JobHandlers interface {
	ListJobs(c *fiber.Ctx) error
	CreateJob(c *fiber.Ctx) error
	GetJob(c *fiber.Ctx) error
	ListJobItems(c *fiber.Ctx) error
	CancelJob(c *fiber.Ctx) error
}

// RegisterRoutes mounts the job endpoints and the health check on app
func RegisterRoutes(app *fiber.App, h JobHandlers) {
	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	}).Name(HealthCheck)

	jobs := app.Group(JobsPath)
	jobs.Get("/", h.ListJobs).Name(ListJobs)
	jobs.Post("/", h.CreateJob).Name(CreateJob)
	jobs.Get("/:id", h.GetJob).Name(GetJob)
	jobs.Get("/:id/products", h.ListJobItems).Name(ListJobItems)
	jobs.Post("/:id/cancel", h.CancelJob).Name(CancelJob)
}

// withID replaces the :id parameter of a route pattern with an escaped id
func withID(pattern, id string) string {
	return strings.Replace(pattern, ":id", url.PathEscape(id), 1)
}

// ListJobsURL returns the URL for listing jobs with the given query
func ListJobsURL(q url.Values) string {
	if len(q) == 0 {
		return JobsPath
	}
	return JobsPath + "?" + q.Encode()
}

// CreateJobURL returns the URL for creating a job
func CreateJobURL() string {
	return JobsPath
}

// GetJobURL returns the URL for fetching a job
func GetJobURL(id string) string {
	return withID(JobPath, id)
}

// ListJobItemsURL returns the URL for fetching the items of a job
func ListJobItemsURL(id string) string {
	return withID(JobItemsPath, id)
}

// CancelJobURL returns the URL for cancelling a job
func CancelJobURL(id string) string {
	return withID(CancelJobPath, id)
}
