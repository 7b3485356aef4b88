package contentstore

import (
	"context"
	"io"
	"time"
)

// Item describes a single file listed from a content-store folder.
type Item struct {
	ID        string
	Name      string
	Folder    string
	Size      int64
	CreatedAt time.Time
}

// ListOptions narrows a folder listing.
type ListOptions struct {
	// NamePrefix keeps only items whose file name starts with the prefix.
	NamePrefix string
	// Limit caps the number of returned items; zero means no cap.
	Limit int
}

// Gateway is the contract the pipeline consumes from the external content
// store. Implementations surface duplicate upload names as
// services.ErrConflict and network/server failures as
// services.ErrTransientGateway.
type Gateway interface {
	// List returns the items in a folder.
	List(ctx context.Context, folderID string, opts ListOptions) ([]Item, error)
	// Fetch streams a file's bytes by identifier.
	Fetch(ctx context.Context, fileID string) (io.ReadCloser, error)
	// Upload stores a new file in a folder and returns its assigned identifier.
	Upload(ctx context.Context, folderID, name string, r io.Reader, size int64) (string, error)
	// Delete removes a file by identifier.
	Delete(ctx context.Context, fileID string) error
	// SignedURL returns a time-bounded location URL for a stored file.
	SignedURL(ctx context.Context, fileID string, ttl time.Duration) (string, error)
}
