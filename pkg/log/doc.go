// Package log provides Tidefeed's structured logging facade.
//
// # Overview
//
// The package exposes a small Logger interface with leveled methods and a
// typed Field for structured context. Internally it is backed by the standard
// library's slog via a bridge handler, so output format (text or JSON) and
// level are owned here while the slog ecosystem remains reachable.
//
// Quick start
//
//	l := log.New(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormat(log.TextFormat),
//	)
//	l = l.With(log.Component("sequencer"), log.Str("feed", "default"))
//	l.Info("feed resumed", log.Int64("offset", 4096))
//
// Loggers are passed explicitly via dependency injection; there is no global
// default.
package log
