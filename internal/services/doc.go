// Package services holds the business logic between the transport layer and
// the result pipeline.
//
// ResultsService owns the lifecycle of uploaded result files: it validates
// and loads an upload into a session, derives filtered views from it
// (records with their highlight severity, summary, grouped accuracy, option
// lists) and exports a view as CSV or xlsx. The same service loads local
// files for the command line.
//
// HealthService reports liveness and readiness of the API.
//
// Views over an empty filtered set are not errors: JSON views carry
// Empty and Notice, while Export returns a *dataprocessing.EmptyResultError
// the caller renders as an informational state.
//
// Example usage:
//
//	svc, err := services.NewResultsService(store, services.ResultsServiceOptions{
//		Loader: cfg.Loader,
//		Export: cfg.Export,
//		Logger: logger,
//	})
//	sess, err := svc.Upload(ctx, file, services.LoadRequest{Filename: "run.xlsx", Size: n})
//	page, err := svc.Records(ctx, sess.ID, spec)
package services
