// Package dataprocessing turns curated extraction-test spreadsheets into typed
// result sets and answers every question the dashboards ask of them.
//
// # Architecture
//
// The package holds the whole pure pipeline:
//
// 1. Parser: reads CSV or Excel bytes, normalises headers onto canonical fields
// and coerces cells into ResultRecords
// 2. Filter: composable predicates over a ResultSet (FilterSpec, Apply)
// 3. Highlight: maps a status string onto a severity class (Classify)
// 4. Summarizer: counters, rates and grouped accuracy (Summarize, GroupAccuracy)
//
// # Usage
//
//	res, err := dataprocessing.LoadFile(ctx, "resultados.xlsx", dataprocessing.DefaultLoadOptions())
//	if err != nil {
//	    var schemaErr *dataprocessing.SchemaError
//	    if errors.As(err, &schemaErr) {
//	        // tell the operator which columns are missing
//	    }
//	    return err
//	}
//
//	spec := dataprocessing.FilterSpec{Status: "Parcialmente"}
//	view := dataprocessing.Apply(res.Set, spec)
//	summary := dataprocessing.Summarize(view)
//
// # Data Flow
//
//	bytes → Parser → ResultSet → Filter → (Summarizer, Highlight) → exporter
//
// No function in this package mutates a ResultSet; every step returns a new view,
// so the originally loaded set can be filtered again without re-parsing.
//
// # Error Handling
//
// LoadError and SchemaError abort a load. FieldParseError is recovered per record:
// the record is kept with the field unset and the error is reported in LoadResult.Issues.
// EmptyResultError marks an operation asked of an empty view and is informational.
package dataprocessing
