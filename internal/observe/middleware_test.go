package observe

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMiddlewareRecordsStatus(t *testing.T) {
	t.Parallel()

	handler := Middleware(DefaultMetrics())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/brew", nil))

	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusTeapot)
	}
}

// Connection upgrades (WebSocket) hijack the underlying net.Conn. The wrapped
// writer must not hide that capability from handlers behind the middleware.
func TestMiddlewareAllowsHijack(t *testing.T) {
	t.Parallel()

	handler := Middleware(DefaultMetrics())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, rw, err := http.NewResponseController(w).Hijack()
		if err != nil {
			t.Errorf("Hijack through middleware: %v", err)
			http.Error(w, "no hijack", http.StatusNotImplemented)
			return
		}
		defer conn.Close()
		rw.WriteString("HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nhi")
		rw.Flush()
	}))

	srv := httptest.NewServer(handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200 from the hijacked connection", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "hi" {
		t.Errorf("body = %q, want response written on the hijacked conn", body)
	}
}
