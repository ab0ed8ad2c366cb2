package test

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/celestiaorg/descgen/pkg/api/v1/client"
)

// DefaultTestTimeout is the default timeout for test suites.
const DefaultTestTimeout = 30 * time.Second

// Suite encapsulates all components needed for integration testing:
//   - Fake generation service
//   - Real API server
//   - Real API client
type Suite struct {
	t *testing.T

	// Server components
	App     *fiber.App
	Server  *httptest.Server
	Service *FakeService

	// Client components
	APIClient client.Client

	// Context management
	ctx        context.Context
	cancelFunc context.CancelFunc

	cleanupOnce sync.Once
}

// SetS is required by suite.TestingSuite
func (s *Suite) SetS(_ suite.TestingSuite) {}

// SetT sets the testing.T instance for this suite
func (s *Suite) SetT(t *testing.T) {
	s.t = t
}

// T returns the testing.T instance for this suite
func (s *Suite) T() *testing.T {
	return s.t
}

// NewTestSuite creates a suite with a running server and client.
// The suite must be cleaned up after use by calling Cleanup.
func NewTestSuite(t *testing.T) *Suite {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), DefaultTestTimeout)
	s := &Suite{
		t:          t,
		ctx:        ctx,
		cancelFunc: cancel,
	}
	SetupServer(s)
	return s
}

// Cleanup closes the server and cancels the suite context. It is safe to
// call more than once.
func (s *Suite) Cleanup() {
	s.cleanupOnce.Do(func() {
		if s.cancelFunc != nil {
			s.cancelFunc()
		}
		if s.Server != nil {
			s.Server.Close()
		}
	})
}

// Context returns the suite's context, which is automatically
// canceled when the suite is cleaned up.
func (s *Suite) Context() context.Context {
	return s.ctx
}

// Require returns a require.Assertions instance for this suite.
func (s *Suite) Require() *require.Assertions {
	return require.New(s.t)
}

// Retry retries a function until it succeeds or the number of retries is reached.
func (s *Suite) Retry(fn func() error, retries int, interval time.Duration) (err error) {
	for i := 0; i < retries; i++ {
		err = fn()
		if err == nil {
			return nil
		}
		time.Sleep(interval)
	}
	return
}
