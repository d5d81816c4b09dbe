// Command sattrack refreshes a satellite position store from the N2YO
// service and serves it to the map view.
//
//	sattrack fetch [-output data.json] [-workers N] <input_file>
//	sattrack serve [-addr :8080] [-store data.json]
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

const usage = `usage:
  sattrack fetch [-output PATH] [-workers N] <input_file>
  sattrack serve [-addr ADDR] [-store PATH]
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	switch args[0] {
	case "fetch":
		return runFetch(args[1:], stdout, stderr)
	case "serve":
		return runServe(args[1:], stdout, stderr)
	case "-h", "-help", "--help", "help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n%s", args[0], usage)
		return 2
	}
}

// newLogger builds the JSON logger at the level named by SATTRACK_LOG_LEVEL.
func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	v := os.Getenv("SATTRACK_LOG_LEVEL")
	invalid := false
	if v != "" {
		if err := level.UnmarshalText([]byte(v)); err != nil {
			level = slog.LevelInfo
			invalid = true
		}
	}

	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	if invalid {
		logger.Warn("invalid SATTRACK_LOG_LEVEL value, using default", "value", v, "default", "info")
	}
	return logger
}
