// Package testutil provides test helpers shared by leadhistory packages.
//
// The package is organized into focused files:
//   - assert.go: assertion helpers (MustNoErr, AssertContainsAll, etc.)
//   - fs_helpers.go: filesystem operations (WriteFile, ReadFile)
//
// The fake CRM server lives in the crmtest subpackage.
package testutil
