// Package logger builds *slog.Logger values with functional options and
// injects request-scoped attributes from context.Context.
//
//	log := logger.New(
//	    logger.WithEnvironment("production", "notekit"),
//	    logger.WithContextExtractors(auth.LogExtractors()...),
//	)
//	log.InfoContext(ctx, "subscription upgraded", logger.PlanID("pro"))
//
// Attribute helpers in attr.go keep key names consistent. Error and UserID
// return an empty Attr for nil values so they can be passed unconditionally.
package logger
