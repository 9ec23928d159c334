// Package log captures protocol traffic between the host and a mesh node.
//
// Capture is separate from operational logging (slog): it records every
// frame, decoded message, state change and device console line as a
// machine-readable event stream that can be replayed with meshnode-log.
//
// # Basic Usage
//
//	// Console, via slog at debug level
//	logger := log.NewSlogAdapter(slog.Default())
//
//	// File, CBOR encoded
//	fileLogger, _ := log.NewFileLogger("/var/log/meshnode/session.mlog")
//
//	// Both
//	logger := log.NewMultiLogger(log.NewSlogAdapter(slog.Default()), fileLogger)
//
// # Layers
//
//   - Transport: raw stream frames (FrameEvent) and device console output (DebugEvent)
//   - Wire: decoded ToRadio/FromRadio messages (MessageEvent)
//   - Session: link and session state changes (StateChangeEvent)
//
// # File Format
//
// Capture files are a concatenation of CBOR-encoded events, conventionally
// with the .mlog extension.
package log
