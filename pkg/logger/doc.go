// Package logger builds *slog.Logger values for the detection engine and its
// command line tool, and provides attribute constructors that keep key names
// consistent across packages.
//
// New creates a logger configured by Option functions:
//
//   - WithFormat / WithTextFormatter / WithJSONFormatter select the handler.
//   - WithLevel sets the minimum level; ParseLevel converts config strings.
//   - WithAttr attaches static attributes to every record.
//   - WithEnvironment applies the level and format preset of an environment.
//   - WithContextExtractors / WithContextValue copy values out of the context
//     passed to the *Context logging methods.
//
// # Usage
//
//	log := logger.New(
//	    logger.WithEnvironment(cfg.Env, "devicedetect"),
//	    logger.WithContextValue("worker", workerKey),
//	)
//
//	log.InfoContext(ctx, "dataset loaded",
//	    logger.DataFile(ds.Name()),
//	    logger.Mode(ds.Mode()),
//	    logger.Duration(time.Since(start)),
//	)
//
// Error and Errors return an empty attribute for nil errors, so they can be
// passed unconditionally.
package logger
