// Package exporter writes result sets and their reports back to disk or to
// any io.Writer.
//
// This package contains two main components:
//
// ResultExporter: serializes a ResultSet as CSV or xlsx, with an optional
// ordered column subset, UTF-8 BOM and fixed float precision. Its output reads
// back through dataprocessing.Load into an equivalent set.
//
// CSVWriter: file-oriented CSV writing for reports (summary rows, grouped
// accuracy tables) with append mode and path resolution under the configured
// export directory.
//
// Example usage:
//
//	exp := exporter.NewResultExporter(logger)
//	opts := exporter.DefaultExportOptions()
//	opts.Columns = []domain.Field{domain.FieldQuestion, domain.FieldStatus}
//	err := exp.Export(ctx, file, view, dataprocessing.FormatXLSX, opts)
//
//	writer := exporter.NewCSVWriter(paths, logger)
//	headers, rows := exporter.GroupTable(domain.FieldQuestion, groups)
//	path, err := writer.WriteCSV("accuracy_by_question.csv", exporter.WriteOptions{
//		Headers: headers,
//		Records: rows,
//	})
package exporter
