package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

var logger *slog.Logger

// Init configures the process logger. Console output goes through tint,
// json switches to slog's JSON handler for machine consumption.
func Init(verbose bool, json bool) {
	InitWriter(os.Stderr, verbose, json)
}

func InitWriter(w io.Writer, verbose bool, json bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	if json {
		logger = slog.New(
			slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}),
		)
	} else {
		logger = slog.New(
			tint.NewHandler(w, &tint.Options{
				Level:      level,
				TimeFormat: time.Kitchen,
			}))
	}
	slog.SetDefault(logger)
}

func Info(msg string, args ...any) {
	logger.Info(msg, args...)
}

func Debug(msg string, args ...any) {
	logger.Debug(msg, args...)
}

func Warn(msg string, args ...any) {
	logger.Warn(msg, args...)
}

func Error(msg string, args ...any) {
	logger.Error(msg, args...)
}

type summaryStatement struct {
	level slog.Level
	msg   string
	args  []any
}

var summary = []summaryStatement{}

// AddSummaryError records an error to be repeated when Close is called,
// so failures from a long fetch are not lost in the progress output.
func AddSummaryError(msg string, args ...any) {
	summary = append(summary, summaryStatement{slog.LevelError, msg, args})
}

func Close() {
	if len(summary) == 0 {
		return
	}
	line := []byte("------------\n")

	os.Stderr.Write(line)
	for _, i := range summary {
		logger.Log(context.TODO(), i.level, i.msg, i.args...)
	}
	os.Stderr.Write(line)
	summary = summary[:0]
}

func init() {
	Init(false, false)
}
