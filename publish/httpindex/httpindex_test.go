package httpindex

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/nsdconnect/crawler/docmodel"
)

func TestUpsertSendsPUTWithBody(t *testing.T) {
	var gotMethod, gotPath string
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tokenFile := filepath.Join(t.TempDir(), "token")
	tok := signedToken(t, time.Now().Add(time.Hour))
	if err := os.WriteFile(tokenFile, []byte(tok), 0o600); err != nil {
		t.Fatalf("write token: %v", err)
	}

	ix := New(srv.URL, tokenFile)
	doc := docmodel.New("doc1", "generic")
	doc.Bag.Set(docmodel.NewField(docmodel.FieldID, docmodel.Text, "doc1"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ix.Upsert(ctx, doc); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if gotMethod != http.MethodPut {
		t.Fatalf("expected PUT, got %s", gotMethod)
	}
	if gotPath != "/doc1" {
		t.Fatalf("expected /doc1, got %s", gotPath)
	}
	if gotAuth != "Bearer "+tok {
		t.Fatalf("expected bearer token forwarded, got %q", gotAuth)
	}
}

func TestExistsReturnsFalseOn404(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	ix := New(srv.URL, "")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ok, err := ix.Exists(ctx, "missing")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if ok {
		t.Fatal("expected false for 404")
	}
}

func TestDeleteTreatsNotFoundAsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	ix := New(srv.URL, "")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ix.Delete(ctx, "doc1"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{"exp": exp.Unix()}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}
