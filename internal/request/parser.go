package request

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Request is one tracking request: a satellite id and the observer
// parameters passed through to the lookup service.
type Request struct {
	ID      string
	ObsLat  string
	ObsLon  string
	ObsAlt  string
	Seconds string

	// Line is the 1-based input line the request came from.
	Line int
}

// Parse reads one request per line from r. A line must hold exactly five
// whitespace-separated tokens: id, observer latitude, longitude, altitude
// and prediction window in seconds. Other lines are skipped.
func Parse(r io.Reader, logger *slog.Logger) ([]Request, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var reqs []Request
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) != 5 {
			if len(fields) > 0 {
				logger.Debug("skipping malformed request line", "line", lineNo, "tokens", len(fields))
			}
			continue
		}
		reqs = append(reqs, Request{
			ID:      fields[0],
			ObsLat:  fields[1],
			ObsLon:  fields[2],
			ObsAlt:  fields[3],
			Seconds: fields[4],
			Line:    lineNo,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading requests: %w", err)
	}

	return reqs, nil
}
