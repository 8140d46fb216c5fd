package main

import (
	"io"
	"os"

	"golang.org/x/exp/slog"

	"github.com/ethereum/go-ethereum/log"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"
	"gopkg.in/natefinch/lumberjack.v2"
)

// setupLogging configures the global slog-backed logger from the
// --verbosity/--log.file flags, matching the teacher's terminal-aware
// handler setup: colorized output to an interactive terminal, or a plain
// handler writing to a rotating file.
func setupLogging(ctx *cli.Context) error {
	level := verbosityToLevel(ctx.Int(verbosityFlag.Name))

	var writer io.Writer = os.Stderr
	useColor := isatty.IsTerminal(os.Stderr.Fd())

	if file := ctx.String(logFileFlag.Name); file != "" {
		writer = &lumberjack.Logger{
			Filename:   file,
			MaxSize:    100,
			MaxBackups: 10,
			MaxAge:     30,
		}
		useColor = false
	} else if useColor {
		writer = colorable.NewColorableStderr()
	}

	handler := log.NewTerminalHandler(writer, useColor)
	glogger := log.NewGlogHandler(handler)
	glogger.Verbosity(level)
	log.SetDefault(log.NewLogger(glogger))
	return nil
}

// verbosityToLevel maps the traditional 0-5 geth verbosity scale onto
// go-ethereum's slog-based levels.
func verbosityToLevel(v int) slog.Level {
	switch {
	case v <= 0:
		return log.LevelCrit
	case v == 1:
		return log.LevelError
	case v == 2:
		return log.LevelWarn
	case v == 3:
		return log.LevelInfo
	case v == 4:
		return log.LevelDebug
	default:
		return log.LevelTrace
	}
}
