// Package test provides integration testing infrastructure for descgen.
//
// A Suite runs an in-memory fake of the generation service behind a real
// HTTP server and hands out a real API client pointed at it. Jobs created on
// the fake advance one step every time their items are listed, following a
// Script, so pollers and trackers can be driven end to end without a live
// backend.
//
// Example Usage:
//
//	func TestExample(t *testing.T) {
//	    suite := test.NewTestSuite(t)
//	    defer suite.Cleanup()
//
//	    suite.Service.SetScript(test.Script{Steps: 2, CostAfter: 1})
//	    res, err := suite.APIClient.CreateJob(suite.Context(), req)
//	    ...
//	}
package test
