package ibkr

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestFetchStatement(t *testing.T) {
	const document = `<FlexQueryResponse type="AF"></FlexQueryResponse>`
	var mux *http.ServeMux
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mux.ServeHTTP(w, r)
	}))
	defer server.Close()

	mux = http.NewServeMux()
	mux.HandleFunc("/send", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("t") != "tok123" || r.URL.Query().Get("q") != "987" {
			http.Error(w, "bad query", http.StatusBadRequest)
			return
		}
		fmt.Fprintf(w, `<FlexStatementResponse><Status>Success</Status><ReferenceCode>555</ReferenceCode><Url>%s/get</Url></FlexStatementResponse>`, server.URL)
	})
	mux.HandleFunc("/get", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") != "555" {
			http.Error(w, "bad reference", http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, document)
	})

	svc := NewServiceWith(XMLParser{}, server.URL+"/send?t=%s&q=%s&v=3")
	got, err := svc.FetchStatement(context.Background(), "tok123", "987")
	if err != nil {
		t.Fatal(err)
	}
	if got != document {
		t.Errorf("fetched %q, want the generated document", got)
	}
}

func TestFetchStatement_RetriesWhileGenerating(t *testing.T) {
	const document = `<FlexQueryResponse type="AF"></FlexQueryResponse>`
	var gets int
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/send":
			fmt.Fprintf(w, `<FlexStatementResponse><Status>Success</Status><ReferenceCode>555</ReferenceCode><Url>%s/get</Url></FlexStatementResponse>`, server.URL)
		case "/get":
			gets++
			if gets == 1 {
				fmt.Fprint(w, `<FlexStatementResponse><ErrorCode>1019</ErrorCode></FlexStatementResponse>`)
				return
			}
			fmt.Fprint(w, document)
		}
	}))
	defer server.Close()

	svc := NewServiceWith(XMLParser{}, server.URL+"/send?t=%s&q=%s&v=3")
	got, err := svc.FetchStatement(context.Background(), "tok123", "987")
	if err != nil {
		t.Fatal(err)
	}
	if got != document {
		t.Errorf("fetched %q, want the generated document", got)
	}
	if gets != 2 {
		t.Errorf("download attempts = %d, want 2", gets)
	}
}

func TestFetchStatement_FailureHidesToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<FlexStatementResponse><Status>Fail</Status><ErrorCode>1012</ErrorCode></FlexStatementResponse>`)
	}))
	defer server.Close()

	svc := NewServiceWith(XMLParser{}, server.URL+"/send?t=%s&q=%s&v=3")
	_, err := svc.FetchStatement(context.Background(), "supersecret", "987")
	if err == nil {
		t.Fatal("expected error")
	}
	if strings.Contains(err.Error(), "supersecret") {
		t.Errorf("error leaks the full token: %v", err)
	}
	if !strings.Contains(err.Error(), "supe") {
		t.Errorf("error = %v, want the token prefix for correlation", err)
	}
}

func TestFetchStatement_ContextCancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<FlexStatementResponse><ErrorCode>1018</ErrorCode></FlexStatementResponse>`)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	svc := NewServiceWith(XMLParser{}, server.URL+"/send?t=%s&q=%s&v=3")
	_, err := svc.FetchStatement(ctx, "tok123", "987")
	if err == nil {
		t.Fatal("expected error after cancellation")
	}
	if !strings.Contains(err.Error(), context.DeadlineExceeded.Error()) {
		t.Errorf("error = %v, want the context deadline", err)
	}
}
