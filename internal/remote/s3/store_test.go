package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awsS3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"budgetcore/pkg/domain"
)

var now = time.Date(2024, time.July, 10, 9, 0, 0, 0, time.UTC)

// mockRoundTripper fakes the tiny S3 subset the adapter uses: GetObject
// and PutObject on path-style URLs.
type mockRoundTripper struct{ state map[string][]byte }

func (m *mockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}
	switch req.Method {
	case http.MethodGet:
		if body, ok := m.state[key]; ok {
			return &http.Response{StatusCode: 200, Body: io.NopCloser(bytes.NewReader(body)), Header: http.Header{
				"Content-Length": {strconv.Itoa(len(body))},
				"Content-Type":   {"application/json"},
			}}, nil
		}
		errXML := `<?xml version="1.0"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`
		return &http.Response{StatusCode: 404, Body: io.NopCloser(strings.NewReader(errXML)), Header: http.Header{
			"Content-Type": {"application/xml"},
		}}, nil
	case http.MethodPut:
		body, _ := io.ReadAll(req.Body)
		if dec, ok := decodeChunked(body); ok {
			body = dec
		}
		m.state[key] = body
		return &http.Response{StatusCode: 200, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{"ETag": {"\"etag\""}}}, nil
	}
	return &http.Response{StatusCode: 501, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{}}, nil
}

func newMockStore(t *testing.T) (*Store, *mockRoundTripper) {
	t.Helper()
	rt := &mockRoundTripper{state: make(map[string][]byte)}
	cfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("AKIA", "SECRET", "")),
	)
	if err != nil {
		t.Fatalf("cfg: %v", err)
	}
	client := awsS3.NewFromConfig(cfg, func(o *awsS3.Options) {
		o.BaseEndpoint = aws.String("https://mock.s3.local")
		o.HTTPClient = &http.Client{Transport: rt}
		o.UsePathStyle = true
	})
	return &Store{client: client, bucket: "test-bucket", prefix: "documents"}, rt
}

func TestFetchMissingKey(t *testing.T) {
	store, _ := newMockStore(t)
	if _, err := store.Fetch(context.Background(), "nobody"); !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestPutFetchRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, rt := newMockStore(t)
	doc := domain.NewDefaultDocument(now)
	doc.LastUpdated = now
	if err := store.Put(ctx, "u1", doc, time.Time{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, ok := rt.state["documents/u1.json"]; !ok {
		t.Fatalf("object not stored under the prefixed key, state: %v", keysOf(rt.state))
	}

	got, err := store.Fetch(ctx, "u1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got.CurrentDashboardID != doc.CurrentDashboardID {
		t.Fatalf("document changed in round trip")
	}
	if got.Version != domain.SchemaVersion {
		t.Fatalf("version = %d", got.Version)
	}
}

func TestFetchUpgradesLegacyObject(t *testing.T) {
	ctx := context.Background()
	store, rt := newMockStore(t)
	rt.state["documents/u1.json"] = []byte(`{"scheduleGroups": [{"title": "Bills", "items": []}]}`)

	got, err := store.Fetch(ctx, "u1")
	if err != nil {
		t.Fatalf("fetch legacy object: %v", err)
	}
	if len(got.Dashboards) != 1 {
		t.Fatalf("legacy object not wrapped in a dashboard")
	}
	if got.Version != domain.SchemaVersion {
		t.Fatalf("legacy object not upgraded, version = %d", got.Version)
	}
}

func TestWatchUnsupported(t *testing.T) {
	store, _ := newMockStore(t)
	if _, err := store.Watch(context.Background(), "u1"); !errors.Is(err, domain.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error for missing bucket")
	}
}

func TestOpenFromEnvMinimal(t *testing.T) {
	t.Setenv("BUDGETCORE_REMOTE_S3_BUCKET", "env-bucket")
	t.Setenv("BUDGETCORE_REMOTE_S3_REGION", "us-east-1")
	t.Setenv("AWS_ACCESS_KEY_ID", "AKIA")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "SECRET")
	s, err := OpenFromEnv(context.Background())
	if err != nil {
		t.Fatalf("OpenFromEnv: %v", err)
	}
	if s.Driver() != domain.RemoteS3 {
		t.Fatalf("driver = %s", s.Driver())
	}
}

func TestOpenFromEnvRequiresBucket(t *testing.T) {
	t.Setenv("BUDGETCORE_REMOTE_S3_BUCKET", "")
	if _, err := OpenFromEnv(context.Background()); err == nil {
		t.Fatalf("expected error without bucket")
	}
}

func keysOf(m map[string][]byte) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// decodeChunked unwraps an aws-chunked upload body when the SDK signs the
// payload in streaming form.
func decodeChunked(b []byte) ([]byte, bool) {
	parts := strings.Split(string(b), "\r\n")
	if len(parts) < 3 {
		return nil, false
	}
	n, err := strconv.ParseInt(parts[0], 16, 64)
	if err != nil || n <= 0 {
		return nil, false
	}
	if int64(len(parts[1])) != n {
		return nil, false
	}
	if parts[2] != "0" {
		return nil, false
	}
	return []byte(parts[1]), true
}
