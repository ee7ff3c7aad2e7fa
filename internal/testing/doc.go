// Package testing provides test utilities, builders, and fixtures for unit and integration tests.
//
// This package centralizes common testing patterns to avoid duplication across test files:
//   - MockRunner: testify mock of runner.Runner with command matchers
//   - Workspace: a throwaway source/provisioning tree on disk
//   - ConfigBuilder: Fluent builder for creating test configurations
//
// Usage:
//
//	ws := testing.NewWorkspace(t).WithDeploymentConfig()
//	r := &testing.MockRunner{}
//	r.OnCommand("pip", "--platform").Run(testing.StagePackages(t, "fastapi", "0.110.0")).Return(testing.Succeeded(""))
package testing
