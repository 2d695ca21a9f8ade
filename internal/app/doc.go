// Package app wires the results dashboard server together and manages its
// lifecycle.
//
// # Initialization Flow
//
//	1. Resolve and create the data, exports and logs directories
//	2. Initialize OpenTelemetry and the business metrics
//	3. Create the session store with its eviction hook
//	4. Create the results and health services
//	5. Set up middleware, API routes and /metrics
//	6. Configure the HTTP server
//
// # Usage
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    return err
//	}
//	application, err := app.NewApplication(cfg, logger)
//	if err != nil {
//	    return err
//	}
//	return application.Run(ctx)
//
// # Graceful Shutdown
//
// Run returns when ctx is done or the process receives SIGINT or SIGTERM.
// In-flight requests get Server.ShutdownTimeout to finish, then the session
// store janitor stops and telemetry is flushed.
//
// The package never calls os.Exit; errors are returned to main.
package app
