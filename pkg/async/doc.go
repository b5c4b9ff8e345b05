// Package async runs background goroutines that must not take the process
// down with them.
//
// SafeGo recovers panics, logs returned errors and optionally bounds the
// task with a timeout:
//
//	done := async.SafeGo(ctx, logger, 0, "google callback server", func(ctx context.Context) error {
//		return srv.Serve(ln)
//	})
//	<-done
//
// Fan-out work that the caller waits on uses a conc pool instead.
package async
