// Package logging builds the zap loggers used by the ccfeatures CLI.
//
// Output semantics:
//   - User output (stdout): build summaries, JSON reports
//   - Diagnostic logging (stderr): probe attempts, resolutions, warnings
//
// Verbosity levels:
//   - WARN (default): unresolved optional checks, timeouts
//   - DEBUG (--verbose): every probe attempt and captured compiler output
package logging

import (
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a console logger writing to w.
func New(w io.Writer, verbose bool) *zap.SugaredLogger {
	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.DebugLevel
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = ""
	encCfg.CallerKey = ""
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.AddSync(w),
		zap.NewAtomicLevelAt(level),
	)
	return zap.New(core).Sugar().Named("ccfeatures")
}

// Nop returns a logger that discards all output.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
