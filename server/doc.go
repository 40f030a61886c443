// Package server adapts a composed dispatcher to net/http.
//
// Adapt returns an http.Handler that allocates a fresh middleware.Context
// for every request, runs the dispatcher, and writes the response the chain
// described:
//
//	d := middleware.MustCompose(
//	    middleware.Recover(),
//	    middleware.RequestID(),
//	    middleware.Text(http.StatusOK, "hello"),
//	)
//	http.ListenAndServe(":8080", server.Adapt(d))
//
// # Finalization
//
// Once the dispatcher returns, the adapter writes Status, Header and Body
// from the Context. Handlers that wrote to the raw ResponseWriter are left
// alone. A Context with neither status nor body is answered with 404.
//
// A failed dispatch is logged and answered by the ErrorHandler: a
// *protocol.Error supplies the status and a JSON error body, any other error
// becomes a plain 500. WithFinalizer replaces the whole step.
package server
