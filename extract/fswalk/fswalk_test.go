package fswalk

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/nsdconnect/crawler/extract"
	"github.com/nsdconnect/crawler/policy"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestWalkVisitsAllRegularFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "a")
	writeFile(t, filepath.Join(root, "sub", "b.txt"), "b")

	s := &Source{Root: root}

	var mu sync.Mutex
	var got []string
	err := s.Walk(context.Background(), func(e extract.Entry) error {
		mu.Lock()
		got = append(got, e.LogicalKey)
		mu.Unlock()
		return nil
	})
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	sort.Strings(got)
	want := []string{filepath.Join(root, "a.txt"), filepath.Join(root, "sub", "b.txt")}
	sort.Strings(want)
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestWalkSkipsUnfollowedSubtree(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "keep", "a.txt"), "a")
	writeFile(t, filepath.Join(root, "skip", "b.txt"), "b")

	follow, err := policy.Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	_ = follow // empty list is pass-through; build a real one below instead

	followList := mustList(t, "keep$")
	s := &Source{Root: root, Follow: followList}

	var mu sync.Mutex
	var got []string
	walkErr := s.Walk(context.Background(), func(e extract.Entry) error {
		mu.Lock()
		got = append(got, e.LogicalKey)
		mu.Unlock()
		return nil
	})
	if walkErr != nil {
		t.Fatalf("walk: %v", walkErr)
	}
	for _, g := range got {
		if strings.Contains(g, "skip") {
			t.Fatalf("expected skip/ subtree excluded, got %v", got)
		}
	}
}

func mustList(t *testing.T, pattern string) *policy.List {
	t.Helper()
	f, err := os.CreateTemp("", "follow-*.txt")
	if err != nil {
		t.Fatalf("tempfile: %v", err)
	}
	defer os.Remove(f.Name())
	if _, err := f.WriteString(pattern + "\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	f.Close()
	l, err := policy.Load(f.Name())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return l
}
