package n2yo

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/star/sattrack/internal/merge"
	"github.com/star/sattrack/internal/request"
)

var testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))

var issRequest = request.Request{ID: "25544", ObsLat: "41.702", ObsLon: "-76.014", ObsAlt: "0", Seconds: "2"}

const issBody = `{"info":{"satname":"SPACE STATION","satid":25544,"transactionscount":5},
"positions":[
 {"satlatitude":-39.90318514,"satlongitude":158.28897924,"sataltitude":417.85,"timestamp":1521354418,"eclipsed":false},
 {"satlatitude":-39.86493451,"satlongitude":158.35261287,"sataltitude":417.84,"timestamp":1521354419,"eclipsed":false}]}`

func newTestClient(url string) *Client {
	return NewClient(Config{BaseURL: url, APIKey: "SECRET"}, testLogger)
}

// TestPositionsSuccess verifies the request shape and decoding.
func TestPositionsSuccess(t *testing.T) {
	var gotPath, gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(issBody))
	}))
	defer server.Close()

	resp, err := newTestClient(server.URL).Positions(context.Background(), issRequest)
	require.NoError(t, err)

	assert.Equal(t, "/positions/25544/41.702/-76.014/0/2&apiKey=SECRET", gotPath)
	assert.Equal(t, DefaultUserAgent, gotUA)

	obs := resp.Observation()
	require.NotNil(t, obs.Name)
	assert.Equal(t, "SPACE STATION", *obs.Name)
	require.Len(t, obs.Samples, 2)
	require.NotNil(t, obs.Samples[1].Lat)
	assert.InDelta(t, -39.86493451, *obs.Samples[1].Lat, 1e-9)
	require.NotNil(t, obs.Samples[1].Timestamp)
	assert.Equal(t, int64(1521354419), *obs.Samples[1].Timestamp)

	kind, last := merge.Observed(obs).Classify()
	assert.Equal(t, merge.KindSuccess, kind)
	assert.InDelta(t, 158.35261287, *last.Lon, 1e-9)
}

// TestPositionsStatus verifies that only statuses in [200, 400) are accepted.
func TestPositionsStatus(t *testing.T) {
	tests := []struct {
		status  int
		wantErr bool
	}{
		{http.StatusOK, false},
		{http.StatusNoContent, false},
		{http.StatusNotModified, false},
		{http.StatusBadRequest, true},
		{http.StatusUnauthorized, true},
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				if tt.status != http.StatusNoContent && tt.status != http.StatusNotModified {
					w.Write([]byte(`{}`))
				}
			}))
			defer server.Close()

			_, err := newTestClient(server.URL).Positions(context.Background(), issRequest)
			if !tt.wantErr {
				// Empty 204/304 bodies are not JSON.
				if err != nil {
					assert.ErrorIs(t, err, ErrPayload)
				}
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrTransport)
			assert.Contains(t, err.Error(), "status code")
		})
	}
}

func TestPositionsUnparsable(t *testing.T) {
	bodies := []string{
		"<html>rate limited</html>",
		`[1,2,3]`,
		`null`,
		`"positions"`,
		`{"info":{"satname":"X"},"positions":[`,
	}

	for _, body := range bodies {
		t.Run(body, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			}))
			defer server.Close()

			_, err := newTestClient(server.URL).Positions(context.Background(), issRequest)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrPayload)
			assert.False(t, errors.Is(err, ErrTransport))
		})
	}
}

// TestPositionsServiceError covers the 200 response the service sends for a
// bad API key: it parses, but yields no samples.
func TestPositionsServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"Invalid API Key!"}`))
	}))
	defer server.Close()

	resp, err := newTestClient(server.URL).Positions(context.Background(), issRequest)
	require.NoError(t, err)
	assert.Equal(t, "Invalid API Key!", resp.Error)

	kind, _ := merge.Observed(resp.Observation()).Classify()
	assert.Equal(t, merge.KindEmptyOrInvalid, kind)
}

func TestObservationNonNumericFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"info":{"satname":42},"positions":[{"satlatitude":"12.5","satlongitude":3,"timestamp":"soon"}]}`))
	}))
	defer server.Close()

	resp, err := newTestClient(server.URL).Positions(context.Background(), issRequest)
	require.NoError(t, err)

	obs := resp.Observation()
	assert.Nil(t, obs.Name)
	require.Len(t, obs.Samples, 1)
	assert.Nil(t, obs.Samples[0].Lat)
	assert.NotNil(t, obs.Samples[0].Lon)
	assert.Nil(t, obs.Samples[0].Timestamp)
}

// TestPositionsBodyLimit verifies that oversized responses are rejected.
func TestPositionsBodyLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("A", 2048)))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, MaxBodyBytes: 1024}, testLogger)
	_, err := client.Positions(context.Background(), issRequest)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	assert.Contains(t, err.Error(), "byte limit")
}

func TestPositionsTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(Config{BaseURL: server.URL, APIKey: "SECRET", Timeout: 50 * time.Millisecond}, testLogger)
	_, err := client.Positions(context.Background(), issRequest)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	assert.NotContains(t, err.Error(), "SECRET")
}

func TestPositionsConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := newTestClient(url).Positions(context.Background(), issRequest)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
}

func TestURLEscapesSegments(t *testing.T) {
	c := NewClient(Config{BaseURL: "https://example.test/api/", APIKey: "a&b"}, testLogger)
	got := c.URL(request.Request{ID: "1/2", ObsLat: "1", ObsLon: "2", ObsAlt: "3", Seconds: "4"})
	assert.Equal(t, "https://example.test/api/positions/1%2F2/1/2/3/4&apiKey=a%26b", got)
}

// TestPositionsWrongShapedFields checks that only a non-object top level is
// unparsable; a wrong-shaped field below it is treated as absent.
func TestPositionsWrongShapedFields(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantKind merge.Kind
		wantName string
	}{
		{
			name:     "info not an object",
			body:     `{"info":"x","positions":[{"satlatitude":1,"satlongitude":2,"timestamp":3}]}`,
			wantKind: merge.KindSuccess,
		},
		{
			name:     "error not a string",
			body:     `{"error":5,"info":{"satname":"NOAA 18"},"positions":[{"satlatitude":1,"satlongitude":2,"timestamp":3}]}`,
			wantKind: merge.KindSuccess,
			wantName: "NOAA 18",
		},
		{
			name:     "position element not an object",
			body:     `{"info":{"satname":"NOAA 18"},"positions":[1]}`,
			wantKind: merge.KindEmptyOrInvalid,
			wantName: "NOAA 18",
		},
		{
			name:     "last position element not an object",
			body:     `{"positions":[{"satlatitude":1,"satlongitude":2},"late"]}`,
			wantKind: merge.KindEmptyOrInvalid,
		},
		{
			name:     "positions an object",
			body:     `{"info":{"satname":"NOAA 18"},"positions":{"satlatitude":1,"satlongitude":2}}`,
			wantKind: merge.KindEmptyOrInvalid,
			wantName: "NOAA 18",
		},
		{
			name:     "positions a string",
			body:     `{"positions":"none"}`,
			wantKind: merge.KindEmptyOrInvalid,
		},
		{
			name:     "null fields",
			body:     `{"info":null,"positions":null,"error":null}`,
			wantKind: merge.KindEmptyOrInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			resp, err := newTestClient(server.URL).Positions(context.Background(), issRequest)
			require.NoError(t, err)

			obs := resp.Observation()
			kind, _ := merge.Observed(obs).Classify()
			assert.Equal(t, tt.wantKind, kind)
			if tt.wantName == "" {
				assert.Nil(t, obs.Name)
			} else {
				require.NotNil(t, obs.Name)
				assert.Equal(t, tt.wantName, *obs.Name)
			}
		})
	}
}

func TestObservationTimestampOutOfRange(t *testing.T) {
	tests := []struct {
		ts   string
		want *int64
	}{
		{"9223372036854775808", nil},
		{"9223372036854775807", nil},
		{"1e19", nil},
		{"-1e19", nil},
		{"1521354418", ptr(int64(1521354418))},
	}

	for _, tt := range tests {
		t.Run(tt.ts, func(t *testing.T) {
			var resp Response
			body := `{"positions":[{"satlatitude":1,"satlongitude":2,"timestamp":` + tt.ts + `}]}`
			require.NoError(t, json.Unmarshal([]byte(body), &resp))

			obs := resp.Observation()
			require.Len(t, obs.Samples, 1)
			assert.Equal(t, tt.want, obs.Samples[0].Timestamp)
		})
	}
}

func ptr[T any](v T) *T {
	return &v
}
