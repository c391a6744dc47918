package gsloc

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"github.com/gsloc/gsloc/config"
	"github.com/gsloc/gsloc/internal/testutil/testlog"
	"github.com/gsloc/gsloc/transport"
	"github.com/gsloc/gsloc/wloc"
)

// fakeService answers requests the way the location service does, from a
// table of known access points.
type fakeService struct {
	t        *testing.T
	known    map[string]wloc.ResponseWifi
	failures map[string]error
	raw      []byte // returned verbatim when non-nil

	requests []*wloc.Request
}

func (f *fakeService) Post(ctx context.Context, body []byte) ([]byte, error) {
	req, err := wloc.DecodeRequest(body)
	if err != nil {
		f.t.Errorf("client sent a malformed request: %v", err)
		return nil, err
	}
	f.requests = append(f.requests, req)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, mac := range req.MACs() {
		if err := f.failures[mac]; err != nil {
			return nil, err
		}
	}
	if f.raw != nil {
		return f.raw, nil
	}

	resp := &wloc.Response{}
	for _, mac := range req.MACs() {
		if w, ok := f.known[mac]; ok {
			resp.Wifis = append(resp.Wifis, w)
		}
	}
	return wloc.EncodeResponse(resp)
}

func (f *fakeService) queried() [][]string {
	var macs [][]string
	for _, req := range f.requests {
		macs = append(macs, req.MACs())
	}
	return macs
}

func knownAP(mac string, channel int32) wloc.ResponseWifi {
	return wloc.ResponseWifi{
		MAC:     mac,
		Channel: channel,
		Location: wloc.Location{
			Latitude:  4852000000,
			Longitude: 235000000,
			Accuracy:  35,
			Altitude:  -1,
		},
	}
}

// unknownAP is what the service returns for an access point it has no data for
func unknownAP(mac string) wloc.ResponseWifi {
	return wloc.ResponseWifi{
		MAC:      mac,
		Location: wloc.Location{Latitude: -18000000000, Longitude: -18000000000, Accuracy: -1},
	}
}

func newTestClient(poster transport.Poster, opts ...Option) (*Client, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	return New(poster, append([]Option{WithLogger(logger)}, opts...)...), &buf
}

func countLevel(logs *bytes.Buffer, level string) int {
	return strings.Count(logs.String(), `"level":"`+level+`"`)
}

func TestClient_Query(t *testing.T) {
	testlog.Start(t)
	service := &fakeService{t: t, known: map[string]wloc.ResponseWifi{
		"AA:AA:AA:AA:AA:AA": knownAP("AA:AA:AA:AA:AA:AA", 11),
		"BB:BB:BB:BB:BB:BB": unknownAP("BB:BB:BB:BB:BB:BB"),
	}}
	client, logs := newTestClient(service)

	records, err := client.Query(context.Background(), []string{"AA:AA:AA:AA:AA:AA", "BB:BB:BB:BB:BB:BB"})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	want := []WifiRecord{{
		MAC:       "AA:AA:AA:AA:AA:AA",
		Channel:   11,
		Latitude:  48.52,
		Longitude: 2.35,
		Accuracy:  35,
		Altitude:  -1,
	}}
	if diff := cmp.Diff(want, records); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}

	if len(service.requests) != 1 {
		t.Fatalf("Expected one request, got %d", len(service.requests))
	}
	req := service.requests[0]
	if req.Noise != 0 || req.Signal != 100 {
		t.Errorf("request noise/signal = %d/%d, want 0/100", req.Noise, req.Signal)
	}
	if got := countLevel(logs, "warn"); got != 1 {
		t.Errorf("Expected one warning, got %d:\n%s", got, logs)
	}
	if !strings.Contains(logs.String(), "no results found for MAC address: BB:BB:BB:BB:BB:BB") {
		t.Errorf("warning does not name the MAC:\n%s", logs)
	}
}

func TestClient_Query_Options(t *testing.T) {
	testlog.Start(t)
	service := &fakeService{t: t}
	client, _ := newTestClient(service, WithNoise(-95), WithSignal(42))

	if _, err := client.Query(context.Background(), []string{"aa:bb:cc:dd:ee:ff", "aa:bb:cc:dd:ee:ff"}); err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	req := service.requests[0]
	if req.Noise != -95 || req.Signal != 42 {
		t.Errorf("request noise/signal = %d/%d, want -95/42", req.Noise, req.Signal)
	}
	if diff := cmp.Diff([]string{"aa:bb:cc:dd:ee:ff", "aa:bb:cc:dd:ee:ff"}, req.MACs()); diff != "" {
		t.Errorf("duplicates must be kept (-want +got):\n%s", diff)
	}
}

func TestClient_Query_EmptyResponse(t *testing.T) {
	testlog.Start(t)
	client, logs := newTestClient(&fakeService{t: t, raw: []byte{}})

	records, err := client.Query(context.Background(), []string{"aa:bb:cc:dd:ee:ff"})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("Expected no records, got %v", records)
	}
	if countLevel(logs, "error") != 1 {
		t.Errorf("Expected the empty response to be logged as an error:\n%s", logs)
	}
}

func TestClient_Query_BatchFatal(t *testing.T) {
	testlog.Start(t)
	transportErr := &transport.Error{Op: "post", URL: transport.DefaultURL, StatusCode: 500}

	tests := []struct {
		name    string
		service *fakeService
		macs    []string
		check   func(error) bool
	}{
		{
			name:    "malformed response",
			service: &fakeService{t: t, raw: []byte{0x00, 0x01, 0x02}},
			macs:    []string{"aa:bb:cc:dd:ee:ff"},
			check:   func(err error) bool { return errors.Is(err, ErrMalformedResponse) },
		},
		{
			name:    "transport failure",
			service: &fakeService{t: t, failures: map[string]error{"aa:bb:cc:dd:ee:ff": transportErr}},
			macs:    []string{"aa:bb:cc:dd:ee:ff"},
			check: func(err error) bool {
				var te *TransportError
				return errors.As(err, &te) && te.StatusCode == 500
			},
		},
		{
			name:    "request too large",
			service: &fakeService{t: t},
			macs:    make([]string, 2000),
			check:   func(err error) bool { return errors.Is(err, ErrEncodingOverflow) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := range tt.macs {
				if tt.macs[i] == "" {
					tt.macs[i] = "aa:bb:cc:dd:ee:ff"
				}
			}
			client, _ := newTestClient(tt.service)

			records, err := client.Query(context.Background(), tt.macs)
			if !tt.check(err) {
				t.Fatalf("unexpected error: %v", err)
			}
			if records != nil {
				t.Errorf("Expected no records with the error, got %v", records)
			}
		})
	}
}

func TestClient_Query_OverflowSendsNothing(t *testing.T) {
	testlog.Start(t)
	service := &fakeService{t: t}
	client, _ := newTestClient(service)

	macs := make([]string, 2000)
	for i := range macs {
		macs[i] = "aa:bb:cc:dd:ee:ff"
	}
	if _, err := client.Query(context.Background(), macs); !errors.Is(err, ErrEncodingOverflow) {
		t.Fatalf("expected ErrEncodingOverflow, got %v", err)
	}
	if len(service.requests) != 0 {
		t.Errorf("Expected no request to be sent, got %d", len(service.requests))
	}
}

func TestClient_QueryEach(t *testing.T) {
	testlog.Start(t)
	service := &fakeService{
		t: t,
		known: map[string]wloc.ResponseWifi{
			"AA:AA:AA:AA:AA:AA": knownAP("AA:AA:AA:AA:AA:AA", 1),
			"BB:BB:BB:BB:BB:BB": unknownAP("BB:BB:BB:BB:BB:BB"),
			"EE:EE:EE:EE:EE:EE": knownAP("EE:EE:EE:EE:EE:EE", 149),
		},
		failures: map[string]error{
			"DD:DD:DD:DD:DD:DD": &transport.Error{Op: "post", URL: transport.DefaultURL, Err: context.DeadlineExceeded},
		},
	}
	client, logs := newTestClient(service)

	macs := []string{
		"AA:AA:AA:AA:AA:AA",
		"BB:BB:BB:BB:BB:BB", // returned with placeholder values
		"CC:CC:CC:CC:CC:CC", // not returned at all
		"DD:DD:DD:DD:DD:DD",
		"EE:EE:EE:EE:EE:EE",
	}
	records, err := client.QueryEach(context.Background(), macs)

	var got []string
	for _, r := range records {
		got = append(got, r.MAC)
	}
	if diff := cmp.Diff([]string{"AA:AA:AA:AA:AA:AA", "EE:EE:EE:EE:EE:EE"}, got); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}

	var te *TransportError
	if !errors.As(err, &te) || !te.Timeout() {
		t.Fatalf("expected the transport timeout to be returned, got %v", err)
	}
	if !strings.Contains(err.Error(), "query DD:DD:DD:DD:DD:DD") {
		t.Errorf("error does not name the failed MAC: %v", err)
	}

	want := [][]string{{macs[0]}, {macs[1]}, {macs[2]}, {macs[3]}, {macs[4]}}
	if diff := cmp.Diff(want, service.queried()); diff != "" {
		t.Errorf("one request per MAC expected (-want +got):\n%s", diff)
	}
	if got := countLevel(logs, "warn"); got != 2 {
		t.Errorf("Expected one warning for each of BB and CC, got %d:\n%s", got, logs)
	}
	if got := countLevel(logs, "error"); got != 1 {
		t.Errorf("Expected one error log for DD, got %d:\n%s", got, logs)
	}
}

func TestClient_QueryEach_NoErrors(t *testing.T) {
	testlog.Start(t)
	service := &fakeService{t: t, known: map[string]wloc.ResponseWifi{
		"AA:AA:AA:AA:AA:AA": knownAP("AA:AA:AA:AA:AA:AA", 1),
	}}
	client, _ := newTestClient(service)

	records, err := client.QueryEach(context.Background(), []string{"AA:AA:AA:AA:AA:AA", "FF:FF:FF:FF:FF:FF"})
	if err != nil {
		t.Fatalf("QueryEach failed: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("Expected 1 record, got %v", records)
	}
}

func TestClient_QueryEach_Canceled(t *testing.T) {
	testlog.Start(t)
	service := &fakeService{t: t}
	client, _ := newTestClient(service)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.QueryEach(ctx, []string{"aa:bb:cc:dd:ee:ff", "11:22:33:44:55:66"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(service.requests) != 0 {
		t.Errorf("Expected no requests after cancellation, got %d", len(service.requests))
	}
}

func TestNewFromConfig(t *testing.T) {
	testlog.Start(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, err := wloc.DecodeRequest(readAll(t, r))
		if err != nil {
			t.Errorf("DecodeRequest failed: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if req.Signal != 55 {
			t.Errorf("Signal = %d, want 55", req.Signal)
		}
		resp := &wloc.Response{Wifis: []wloc.ResponseWifi{knownAP(req.MACs()[0], 6)}}
		body, err := wloc.EncodeResponse(resp)
		if err != nil {
			t.Errorf("EncodeResponse failed: %v", err)
		}
		w.Write(body)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Endpoint.URL = server.URL
	cfg.Request.Signal = 55

	client, err := NewFromConfig(cfg)
	if err != nil {
		t.Fatalf("NewFromConfig failed: %v", err)
	}
	client.logger = zerolog.Nop()

	records, err := client.Query(context.Background(), []string{"aa:bb:cc:dd:ee:ff"})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(records) != 1 || records[0].MAC != "aa:bb:cc:dd:ee:ff" || records[0].Channel != 6 {
		t.Errorf("unexpected records: %+v", records)
	}
}

func TestNewFromConfig_Invalid(t *testing.T) {
	testlog.Start(t)
	cfg := config.Default()
	cfg.Endpoint.URL = ""

	if _, err := NewFromConfig(cfg); err == nil {
		t.Fatal("Expected error for invalid config")
	}
}

func readAll(t *testing.T, r *http.Request) []byte {
	t.Helper()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r.Body); err != nil {
		t.Errorf("read body: %v", err)
	}
	return buf.Bytes()
}
