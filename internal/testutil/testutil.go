// Package testutil provides test helpers for borderstat tests.
//
// The package is organized into focused files:
//   - assert.go: assertion helpers (MustNoErr, AssertStrings, AssertDiff)
//   - fs_helpers.go: filesystem operations (WriteFile, WriteDataDir)
//   - fixtures.go: CSV fixtures and a CSV builder
//   - fetcher.go: an in-memory fetcher with call counting and gating
package testutil
