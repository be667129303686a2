package api

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func gzipPayload(t *testing.T, body string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write([]byte(body)); err != nil {
		t.Fatalf("write gzip payload: %v", err)
	}
	if err := gw.Close(); err != nil {
		t.Fatalf("close gzip writer: %v", err)
	}
	return &buf
}

func echoBodyHandler(c echo.Context) error {
	data, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return err
	}
	return c.String(http.StatusOK, string(data))
}

func TestDecompressRequestsUnwrapsGzipBody(t *testing.T) {
	e := echo.New()
	e.Use(DecompressRequests())
	e.POST("/echo", echoBodyHandler)

	req := httptest.NewRequest(http.MethodPost, "/echo", gzipPayload(t, `{"title":"hello"}`))
	req.Header.Set(echo.HeaderContentEncoding, "gzip")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != `{"title":"hello"}` {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestDecompressRequestsPassesPlainBodyThrough(t *testing.T) {
	e := echo.New()
	e.Use(DecompressRequests())
	e.POST("/echo", echoBodyHandler)

	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("plain"))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "plain" {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestDecompressRequestsRejectsMalformedGzip(t *testing.T) {
	e := echo.New()
	e.Use(DecompressRequests())
	e.POST("/echo", echoBodyHandler)

	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("not gzip at all"))
	req.Header.Set(echo.HeaderContentEncoding, "gzip")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGzipEncodedHeaderMatching(t *testing.T) {
	tests := []struct {
		header string
		want   bool
	}{
		{header: "gzip", want: true},
		{header: "GZIP", want: true},
		{header: " deflate , gzip ", want: true},
		{header: "deflate", want: false},
		{header: "", want: false},
	}

	for _, tt := range tests {
		if got := gzipEncoded(tt.header); got != tt.want {
			t.Fatalf("gzipEncoded(%q) = %v, want %v", tt.header, got, tt.want)
		}
	}
}
