// Package middleware composes request handlers into pipelines.
//
// A Handler receives the shared Context and a continuation. It may work on
// the way in, call next to run the rest of the chain, and work again on the
// way out:
//
//	timing := func(c *middleware.Context, next middleware.Next) error {
//	    start := time.Now()
//	    err := next()
//	    c.Header.Set("X-Elapsed", time.Since(start).String())
//	    return err
//	}
//
// # Composition
//
// Compose chains handlers into a Dispatcher. A Dispatcher is itself a
// Handler, so pipelines nest:
//
//	api := middleware.MustCompose(auth, loadUser)
//	app := middleware.MustCompose(middleware.RequestID(), api, middleware.JSON(200, "ok"))
//	err := app.Run(middleware.NewContext(w, r))
//
// Calling next twice fails with ErrDoubleInvocation. A panicking handler
// fails the chain exactly as if it had returned the panic value.
//
// # Context Fields
//
// Handlers share values through named fields. Names owned by the Context
// itself (request, body, status, ...) are rejected:
//
//	if err := c.Set("user", u); err != nil { ... }
//	u, ok := middleware.Lookup[*User](c, "user")
//
// # Available Middleware
//
//   - Inject, Resolve: attach static or computed values
//   - JSON, Text: terminal responders
//   - Recover: turns failures into error responses
//   - RequestID: assigns request IDs
//   - Logging: logs outcome and timing
//   - Timeout: attaches a request deadline
//   - RateLimit, RateLimitByClient: token bucket limiting
//   - SizeLimit: caps request bodies
//   - Auth: bearer token and API key authentication
//   - CORS: cross-origin headers and preflights
//   - OTel: OpenTelemetry spans and metrics
//
// # Default Stacks
//
//	// Recover + RequestID + Logging
//	stack := middleware.DefaultStack(logger)
//
//	// Recover + RequestID + Timeout + Logging
//	stack := middleware.DefaultStackWithTimeout(logger, 30*time.Second)
package middleware
