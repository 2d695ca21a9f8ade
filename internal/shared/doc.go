// Package shared holds helpers used across the ocrdash packages that belong
// to no single layer.
//
// The testutil subpackage provides:
//
//   - a buffered slog handler for asserting on log output
//   - result file fixtures (CSV text and xlsx workbooks) shared by the
//     loader, service and HTTP tests
//
// Example usage:
//
//	func TestUpload(t *testing.T) {
//	    logger, logs := testutil.NewTestLogger(t)
//	    path := testutil.WriteFile(t, t.TempDir(), "results.csv", testutil.ResultsCSV)
//	    ...
//	    testutil.AssertLogContains(t, logs, slog.LevelInfo, "result file loaded")
//	}
//
// Nothing in this package may import business packages, so any package's
// tests can use it.
package shared
