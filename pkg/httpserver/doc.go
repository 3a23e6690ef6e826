// Package httpserver runs the API's http.Server next to its background
// tasks, wires lifecycle logging, and exposes liveness and readiness
// handlers.
//
// Run binds the listener first, so WithAddr(":0") works and Addr reports the
// chosen port once Ready is closed. Cancelling the Run context, or any
// background task failing, triggers a graceful shutdown bounded by
// WithShutdownTimeout, after which shutdown hooks release resources.
//
//	srv := httpserver.NewFromConfig(cfg.HTTP,
//		httpserver.WithLogger(log),
//		httpserver.WithBackground("scheduler", jobs.Start),
//		httpserver.WithShutdownHook(func(context.Context) error { return store.Close() }),
//	)
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
//	defer stop()
//	if err := srv.Run(ctx, router); err != nil {
//		return err
//	}
//
// Listen failures wrap ErrStart and drain failures wrap ErrShutdown.
package httpserver
