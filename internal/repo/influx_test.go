package repo

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/miradorstack/mirador-care/internal/models"
)

const twoTableCSV = `#group,false,false,true,true,false,false,true,true,true
#datatype,string,long,dateTime:RFC3339,dateTime:RFC3339,dateTime:RFC3339,double,string,string,string
#default,_result,,,,,,,,
,result,table,_start,_stop,_time,_value,_field,_measurement,device_id
,,0,2024-03-01T09:45:00Z,2024-03-01T10:00:00Z,2024-03-01T09:50:00Z,72,value,vitals_heart_rate,dev-1
,,0,2024-03-01T09:45:00Z,2024-03-01T10:00:00Z,2024-03-01T09:55:00.5Z,75,value,vitals_heart_rate,dev-1

,result,table,_start,_stop,_time,_value,_field,_measurement,device_id,sensor
,,1,2024-03-01T09:45:00Z,2024-03-01T10:00:00Z,2024-03-01T09:52:00Z,74,value,vitals_heart_rate,dev-1,wrist
`

func newTestInflux(rt roundTripFunc) *InfluxClient {
	client := NewInfluxClient(InfluxConfig{URL: "http://influx.local/", Org: "care", Bucket: "vitals", Token: "tok"}, nil)
	client.httpClient = newTestClient(rt)
	return client
}

func TestInfluxFetchSeriesParsesTables(t *testing.T) {
	var gotQuery string
	client := newTestInflux(func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/api/v2/query" {
			t.Fatalf("unexpected path: %s", req.URL.Path)
		}
		if req.URL.Query().Get("org") != "care" {
			t.Fatalf("expected org query parameter, got %q", req.URL.RawQuery)
		}
		if req.Header.Get("Authorization") != "Token tok" {
			t.Fatalf("unexpected authorization header %q", req.Header.Get("Authorization"))
		}
		body, _ := io.ReadAll(req.Body)
		gotQuery = string(body)
		return textResponse(http.StatusOK, "text/csv", twoTableCSV), nil
	})

	samples, err := client.FetchSeries(context.Background(), "dev-1", models.ChannelHeartRate, 15*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, fragment := range []string{
		`from(bucket: "vitals")`,
		`range(start: -15m)`,
		`r["device_id"] == "dev-1"`,
		`r._measurement == "vitals_heart_rate"`,
		`r._field == "value"`,
	} {
		if !strings.Contains(gotQuery, fragment) {
			t.Fatalf("query missing %q:\n%s", fragment, gotQuery)
		}
	}
	if len(samples) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(samples))
	}
	want := []float64{72, 74, 75}
	for i, s := range samples {
		if s.Value != want[i] || s.Channel != models.ChannelHeartRate {
			t.Fatalf("sample %d = %+v, want value %v", i, s, want[i])
		}
	}
}

func TestInfluxFetchSeriesEmptyResponse(t *testing.T) {
	client := newTestInflux(func(req *http.Request) (*http.Response, error) {
		return textResponse(http.StatusOK, "text/csv", "\r\n"), nil
	})
	samples, err := client.FetchSeries(context.Background(), "dev-1", models.ChannelGlucose, time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(samples) != 0 {
		t.Fatalf("expected no samples, got %d", len(samples))
	}
}

func TestInfluxFetchSeriesPropagatesErrors(t *testing.T) {
	client := newTestInflux(func(req *http.Request) (*http.Response, error) {
		return textResponse(http.StatusUnauthorized, "application/json", `{"code":"unauthorized","message":"unauthorized access"}`), nil
	})
	_, err := client.FetchSeries(context.Background(), "dev-1", models.ChannelHeartRate, time.Minute)
	if err == nil || !strings.Contains(err.Error(), "unauthorized access") {
		t.Fatalf("expected unauthorized error, got %v", err)
	}

	errTable := newTestInflux(func(req *http.Request) (*http.Response, error) {
		body := ",error,reference\n,bucket not found,\n"
		return textResponse(http.StatusOK, "text/csv", body), nil
	})
	if _, err := errTable.FetchSeries(context.Background(), "dev-1", models.ChannelHeartRate, time.Minute); err == nil {
		t.Fatalf("expected error table to fail the fetch")
	}

	if _, err := client.FetchSeries(context.Background(), "dev-1", models.Channel("bogus"), time.Minute); err == nil {
		t.Fatalf("expected unknown channel error")
	}
}

func TestFluxStringEscapes(t *testing.T) {
	if got := fluxString(`a"b\c`); got != `"a\"b\\c"` {
		t.Fatalf("unexpected escape: %s", got)
	}
}
