package contentstore

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{Path: filepath.Join(t.TempDir(), "content.db")}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestShouldExternalize(t *testing.T) {
	s := testStore(t)
	if s.ShouldExternalize(DefaultThresholdBytes - 1) {
		t.Error("below threshold should stay inline")
	}
	if !s.ShouldExternalize(DefaultThresholdBytes) {
		t.Error("at threshold should externalize")
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	data := []byte(strings.Repeat("round trip payload ", 200))

	ref, err := s.Put(ctx, data, Metadata{
		Kind:              "text",
		MediaType:         "text/plain",
		Source:            "tool",
		ToolQualifiedName: "files::read_file",
		Tags:              []string{"tool-output"},
	})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if ref.SizeBytes != len(data) {
		t.Errorf("SizeBytes = %d, want %d", ref.SizeBytes, len(data))
	}
	if ref.Preview == "" {
		t.Error("reference has no preview")
	}

	got, err := s.Get(ctx, ref.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("fetched bytes differ from stored bytes")
	}
}

func TestPutDeduplicates(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	data := []byte(strings.Repeat("same bytes ", 150))

	ref1, err := s.Put(ctx, data, Metadata{Kind: "text"})
	if err != nil {
		t.Fatalf("first Put: %v", err)
	}
	ref2, err := s.Put(ctx, data, Metadata{Kind: "text"})
	if err != nil {
		t.Fatalf("second Put: %v", err)
	}
	if ref1.ID != ref2.ID {
		t.Errorf("identical content produced different ids: %s vs %s", ref1.ID, ref2.ID)
	}

	st, err := s.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if st.Count != 1 {
		t.Errorf("store holds %d blobs, want 1 after dedupe", st.Count)
	}
}

func TestPutDedupeKeepsFirstMetadata(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	data := []byte(strings.Repeat("shared bytes ", 150))

	ref1, err := s.Put(ctx, data, Metadata{Kind: "text", MediaType: "text/markdown", FileName: "a.md", Source: "tool"})
	if err != nil {
		t.Fatalf("first Put: %v", err)
	}
	ref2, err := s.Put(ctx, data, Metadata{Kind: "resource", MediaType: "text/plain", FileName: "b.txt", Source: "user"})
	if err != nil {
		t.Fatalf("second Put: %v", err)
	}

	// The second reference must describe the row as stored, not the
	// second call's metadata.
	if ref2.Kind != ref1.Kind || ref2.MediaType != ref1.MediaType || ref2.FileName != ref1.FileName {
		t.Errorf("deduped reference metadata = %s/%s/%s, want first write's %s/%s/%s",
			ref2.Kind, ref2.MediaType, ref2.FileName, ref1.Kind, ref1.MediaType, ref1.FileName)
	}

	refs, err := s.List(ctx, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(refs) != 1 || refs[0].Kind != ref2.Kind || refs[0].FileName != ref2.FileName {
		t.Errorf("List reports %+v, disagreeing with the handed-out reference", refs)
	}
}

func TestPutDeclinesEmpty(t *testing.T) {
	s := testStore(t)
	if _, err := s.Put(context.Background(), nil, Metadata{Kind: "text"}); err == nil {
		t.Error("empty payload should be declined")
	}
}

func TestGetNotFound(t *testing.T) {
	s := testStore(t)
	_, err := s.Get(context.Background(), "no-such-id")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestIsLive(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	ref, err := s.Put(ctx, []byte(strings.Repeat("live ", 300)), Metadata{Kind: "text"})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !s.IsLive(ctx, ref.ID) {
		t.Error("stored reference should be live")
	}
	if s.IsLive(ctx, "missing") {
		t.Error("unknown id should not be live")
	}
}

func TestList(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		payload := strings.Repeat("entry ", 200) + strings.Repeat("x", i+1)
		if _, err := s.Put(ctx, []byte(payload), Metadata{Kind: "text"}); err != nil {
			t.Fatalf("Put %d: %v", i, err)
		}
	}
	refs, err := s.List(ctx, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(refs) != 3 {
		t.Errorf("List returned %d refs, want 3", len(refs))
	}
}

func TestDeleteExpired(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	ref, err := s.Put(ctx, []byte(strings.Repeat("old ", 300)), Metadata{Kind: "text"})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	// Nothing is older than a day yet.
	n, err := s.DeleteExpired(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("DeleteExpired: %v", err)
	}
	if n != 0 {
		t.Errorf("dropped %d blobs, want 0", n)
	}

	// A zero max-age expires everything accessed before "now".
	time.Sleep(1100 * time.Millisecond)
	n, err = s.DeleteExpired(ctx, 0)
	if err != nil {
		t.Fatalf("DeleteExpired: %v", err)
	}
	if n != 1 {
		t.Errorf("dropped %d blobs, want 1", n)
	}
	if s.IsLive(ctx, ref.ID) {
		t.Error("reference should be dead after retention sweep")
	}
}

func TestJanitorConfigValidation(t *testing.T) {
	s := testStore(t)
	if _, err := NewJanitor(s, JanitorConfig{Schedule: "not a cron expr"}, nil); err == nil {
		t.Error("invalid cron expression should be rejected")
	}
	if _, err := NewJanitor(s, JanitorConfig{Schedule: "*/5 * * * *"}, nil); err != nil {
		t.Errorf("valid cron expression rejected: %v", err)
	}
	if _, err := NewJanitor(s, JanitorConfig{}, nil); err != nil {
		t.Errorf("default schedule rejected: %v", err)
	}
}
