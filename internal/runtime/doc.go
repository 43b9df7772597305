// Package runtime wires storage, the blob client and config into a single
// Tidefeed instance. It exposes Open/Close, a basic health check, and the
// constructor for feed sequencers.
//
// Example:
//
//	cfg := config.Default()
//	config.FromEnv(&cfg)
//	rt, _ := runtime.Open(runtime.Options{Config: cfg})
//	defer rt.Close()
//	seq, _ := rt.NewSequencer()
//	_ = seq.Run(ctx, sink)
package runtime
