package analyses

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"contract-analyzer/internal/documents"
	"contract-analyzer/internal/queue"
	"contract-analyzer/internal/shared/lock"
	"contract-analyzer/internal/shared/storage/object"
)

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string][]byte)}
}

func (m *memStore) put(key string, data []byte) {
	m.mu.Lock()
	m.objects[key] = data
	m.mu.Unlock()
}

func (m *memStore) Save(ctx context.Context, userID, fileName string, r io.Reader) (string, int64, string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", 0, "", err
	}
	key := userID + "/" + fileName
	m.put(key, data)
	return key, int64(len(data)), "application/octet-stream", nil
}

func (m *memStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", key, object.ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

type fakeAnalyzer struct {
	mu           sync.Mutex
	response     string
	calls        int
	texts        []string
	instructions []string
	// block, when set, holds Analyze until it is closed.
	block   chan struct{}
	entered chan struct{}
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, text, instruction string) string {
	f.mu.Lock()
	f.calls++
	f.texts = append(f.texts, text)
	f.instructions = append(f.instructions, instruction)
	block, entered := f.block, f.entered
	f.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		<-block
	}
	return f.response
}

type fakeQueue struct {
	sent []queue.Message
	err  error
}

func (f *fakeQueue) Send(ctx context.Context, msg queue.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

// steppingClock returns start on the first call and start+step afterwards.
func steppingClock(start time.Time, step time.Duration) func() time.Time {
	var mu sync.Mutex
	calls := 0
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return start
		}
		return start.Add(step)
	}
}

func buildDocx(t *testing.T, paras ...string) []byte {
	t.Helper()
	var xml strings.Builder
	xml.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	xml.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for _, p := range paras {
		if p == "" {
			xml.WriteString(`<w:p/>`)
			continue
		}
		fmt.Fprintf(&xml, `<w:p><w:r><w:t>%s</w:t></w:r></w:p>`, p)
	}
	xml.WriteString(`</w:body></w:document>`)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}
	if _, err := w.Write([]byte(xml.String())); err != nil {
		t.Fatalf("write entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

type fixture struct {
	svc      *Service
	store    *memStore
	docs     *documents.MemoryRepo
	results  *MemoryRepo
	analyzer *fakeAnalyzer
	locker   *lock.Memory
}

func newFixture(t *testing.T, response string) *fixture {
	t.Helper()
	f := &fixture{
		store:    newMemStore(),
		docs:     documents.NewMemoryRepo(),
		results:  NewMemoryRepo(),
		analyzer: &fakeAnalyzer{response: response},
		locker:   lock.NewMemory(),
	}
	f.svc = &Service{
		Repo:     f.results,
		DocRepo:  f.docs,
		Store:    f.store,
		Analyzer: f.analyzer,
		Locker:   f.locker,
		Now:      steppingClock(time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC), 2900*time.Millisecond),
	}
	return f
}

func (f *fixture) addDocument(t *testing.T, id, userID, mimeType string, data []byte) documents.Document {
	t.Helper()
	doc := documents.Document{
		ID:         id,
		UserID:     userID,
		FileName:   id + ".bin",
		MimeType:   mimeType,
		SizeBytes:  int64(len(data)),
		StorageKey: "objects/" + id,
		Status:     documents.StatusUploaded,
		CreatedAt:  time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC),
	}
	if data != nil {
		f.store.put(doc.StorageKey, data)
	}
	if err := f.docs.Create(context.Background(), doc); err != nil {
		t.Fatalf("create doc: %v", err)
	}
	return doc
}
