// Package logx configures fbdownloader's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - Outputs/levels swappable at runtime (daemon config reload)
package logx
