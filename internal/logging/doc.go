// Package logging provides structured logging for the probemap toolchain.
//
// This package wraps zap with the small surface the extraction pipeline
// needs. Logging is silent by default so that probemap behaves like a quiet
// Unix tool; set PROBEMAP_LOG_LEVEL to enable output:
//
//	PROBEMAP_LOG_LEVEL=debug probemap extract firmware.elf -o firmware.varmap.json
//
// # Log Levels
//
//   - Debug: per-node extraction traces, type registration, skipped symbols
//   - Info: per-file progress (compile units, variable counts)
//   - Warn: recoverable data-quality issues (null addresses, duplicate paths,
//     unsupported constructs that were skipped)
//   - Error: failures that abort an operation
//
// All output goes to stderr so that command output (JSON dumps, values)
// stays clean on stdout.
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. The underlying zap
// logger handles synchronization automatically.
package logging
