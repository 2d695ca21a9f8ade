// Package http implements the HTTP handlers of the results API. It is a thin
// layer between HTTP transport and the services: handlers parse and validate
// the request, call a service and render the response.
//
// # Request Flow
//
//	HTTP Request → Chi Router → Middleware → Handler → Service → Session Store
//	                                              ↓
//	HTTP Response ← Handler ← Service Response ←─┘
//
// # Routes
//
//	POST   /api/sessions                multipart upload (file, format, sheet, charset)
//	GET    /api/sessions                live sessions
//	GET    /api/sessions/{id}           session metadata and load issues
//	DELETE /api/sessions/{id}
//	GET    /api/sessions/{id}/records   filtered records with severity
//	GET    /api/sessions/{id}/summary   filtered counts and rates
//	GET    /api/sessions/{id}/groups    grouped accuracy (by, sorted)
//	GET    /api/sessions/{id}/options   distinct test ids, questions, statuses
//	GET    /api/sessions/{id}/export    attachment, or 204 with X-Notice when empty
//
// Every view accepts the filter parameters test_id, question, status,
// search, temp_min, temp_max, top_p_min, top_p_max, from and to.
//
// # Error Handling
//
// Errors are rendered by errors.ErrorHandler as RFC 7807 problem details:
//
//	{
//	    "type": "/errors/data/schema",
//	    "title": "Missing Required Columns",
//	    "status": 422,
//	    "detail": "missing required columns: status",
//	    "instance": "/api/sessions",
//	    "missing": ["status"]
//	}
//
// # Testing
//
// Handlers are tested with httptest against a real ResultsService backed by
// an in-memory session store.
package http
