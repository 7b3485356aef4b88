package pipeline_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"docmill/internal/contentstore"
	"docmill/internal/services"
)

// fakeContentStore is an in-memory contentstore.Gateway safe for concurrent
// pipeline attempts.
type fakeContentStore struct {
	mu      sync.Mutex
	nextID  int
	objects map[string]fakeObject

	fetchErr  error
	uploadErr error
	listErrs  map[string]error
}

type fakeObject struct {
	name    string
	folder  string
	content []byte
}

func newFakeContentStore() *fakeContentStore {
	return &fakeContentStore{
		objects:  make(map[string]fakeObject),
		listErrs: make(map[string]error),
	}
}

func (f *fakeContentStore) put(folder, name string, content []byte) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("obj-%d", f.nextID)
	f.objects[id] = fakeObject{name: name, folder: folder, content: content}
	return id
}

func (f *fakeContentStore) List(ctx context.Context, folderID string, opts contentstore.ListOptions) ([]contentstore.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.listErrs[folderID]; err != nil {
		return nil, err
	}
	var items []contentstore.Item
	for id, obj := range f.objects {
		if obj.folder != folderID {
			continue
		}
		items = append(items, contentstore.Item{
			ID:     id,
			Name:   obj.name,
			Folder: obj.folder,
			Size:   int64(len(obj.content)),
		})
	}
	return items, nil
}

func (f *fakeContentStore) Fetch(ctx context.Context, fileID string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	obj, ok := f.objects[fileID]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "contentstore", "fetch", fileID, nil)
	}
	return io.NopCloser(bytes.NewReader(obj.content)), nil
}

func (f *fakeContentStore) Upload(ctx context.Context, folderID, name string, r io.Reader, size int64) (string, error) {
	f.mu.Lock()
	if f.uploadErr != nil {
		err := f.uploadErr
		f.mu.Unlock()
		return "", err
	}
	for _, obj := range f.objects {
		if obj.folder == folderID && obj.name == name {
			f.mu.Unlock()
			return "", services.Wrap(services.ErrConflict, "contentstore", "upload", name, nil)
		}
	}
	f.mu.Unlock()

	content, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return f.put(folderID, name, content), nil
}

func (f *fakeContentStore) Delete(ctx context.Context, fileID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, fileID)
	return nil
}

func (f *fakeContentStore) SignedURL(ctx context.Context, fileID string, ttl time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[fileID]; !ok {
		return "", services.Wrap(services.ErrNotFound, "contentstore", "signed url", fileID, nil)
	}
	return "https://store.example.com/signed/" + fileID, nil
}

func (f *fakeContentStore) has(fileID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[fileID]
	return ok
}

func (f *fakeContentStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

// fakeConverter is an in-memory conversion.Service.
type fakeConverter struct {
	mu        sync.Mutex
	next      int
	ready     map[string]bool
	submitErr error
	readyErr  error
}

func newFakeConverter() *fakeConverter {
	return &fakeConverter{ready: make(map[string]bool)}
}

func (f *fakeConverter) Submit(ctx context.Context, sourceURL string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.next++
	id := fmt.Sprintf("conv-%d", f.next)
	f.ready[id] = false
	return id, nil
}

func (f *fakeConverter) Ready(ctx context.Context, conversionID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readyErr != nil {
		return false, f.readyErr
	}
	return f.ready[conversionID], nil
}

func (f *fakeConverter) ViewURL(ctx context.Context, conversionID string, ttl time.Duration) (string, error) {
	return "https://convert.example.com/view/" + conversionID, nil
}

func (f *fakeConverter) markReady(conversionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ready[conversionID] = true
}

// fakeWorker writes a transformed copy of the input to the output path.
type fakeWorker struct {
	mu         sync.Mutex
	calls      int
	processErr error
}

func (f *fakeWorker) Process(ctx context.Context, address, inputPath, outputPath string) error {
	f.mu.Lock()
	f.calls++
	err := f.processErr
	f.mu.Unlock()
	if err != nil {
		return err
	}

	input, readErr := os.ReadFile(inputPath)
	if readErr != nil {
		return readErr
	}
	return os.WriteFile(outputPath, append([]byte("processed:"), input...), 0o644)
}

func (f *fakeWorker) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
