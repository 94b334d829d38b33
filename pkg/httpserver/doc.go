// Package httpserver runs the notekit HTTP listener with graceful shutdown
// and provides liveness and readiness handlers.
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
//	defer stop()
//
//	srv := httpserver.New(cfg, httpserver.WithLogger(log), httpserver.WithShutdownHook(closeInvalidator))
//	if err := srv.Run(ctx, router); err != nil {
//		log.Error("server stopped", logger.Error(err))
//	}
package httpserver
