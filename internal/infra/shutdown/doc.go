// Package shutdown coordinates graceful termination of kernelgate-server.
//
// A Handler waits for SIGINT, SIGTERM, a programmatic Trigger or the
// cancellation of its context, then runs the registered hooks in reverse
// order of registration under a single deadline.
//
//	h := shutdown.NewHandler(30*time.Second, shutdown.WithLogger(log))
//	h.OnShutdown("http", srv.Shutdown)
//	h.OnShutdown("sessions", registry.Shutdown)
//	err := h.Wait(ctx)
package shutdown
