package port

import (
	"context"
	"io"
)

// ObjectStream is a finite, single-pass sequence of byte chunks read from one
// open object body. It is not restartable: consuming the stream twice
// requires opening a new read. Callers that abandon a stream before
// exhaustion must Close it to release the underlying response body.
type ObjectStream interface {
	// Next returns the next chunk, or io.EOF once the body is exhausted.
	// The returned slice is only valid until the following call to Next.
	Next() ([]byte, error)
	Close() error
}

// MultipartSession is one server-issued multipart upload session scoped to a
// single object key. Parts must be submitted with contiguous 1-based part
// numbers; the session is finalized exactly once by Complete, or released by
// Abort. The destination object is not visible until Complete succeeds.
type MultipartSession interface {
	UploadID() string
	Key() string
	// UploadPart submits the next part and returns the server ETag.
	// partNumber must be exactly one greater than the previous part's.
	UploadPart(ctx context.Context, partNumber int32, body io.Reader) (string, error)
	Complete(ctx context.Context) error
	Abort(ctx context.Context) error
}

// ObjectStore defines the contract for folder/file operations over a single
// object-storage bucket. Folders are emulated: a folder is a zero-byte object
// whose key ends in "/", plus the common prefixes returned by delimiter
// listings. Folder paths are passed without the trailing slash; the
// implementation appends it where needed.
type ObjectStore interface {
	Connect(ctx context.Context, bucket string) (string, error)
	ListBuckets(ctx context.Context) ([]string, error)
	CreateBucket(ctx context.Context) error

	CreateFolder(ctx context.Context, folderPath string) error
	FolderExists(ctx context.Context, folderPath string) (bool, error)
	DeleteFolder(ctx context.Context, folderPath string) error
	ListFolders(ctx context.Context, prefix string) ([]string, error)
	ListFolderContents(ctx context.Context, folderPath string) ([]string, error)

	FileExists(ctx context.Context, filePath string) (bool, error)
	UploadFile(ctx context.Context, filePath string, body io.Reader) error
	DeleteFile(ctx context.Context, filePath string) error

	// StreamFileContent and ReadFile are semantically identical; they differ
	// only in their default chunk size (8 KiB and 8 MiB). A chunkSize of 0
	// or less selects the default.
	StreamFileContent(ctx context.Context, filePath string, chunkSize int) (ObjectStream, error)
	ReadFile(ctx context.Context, filePath string, chunkSize int) (ObjectStream, error)

	UploadFileChunked(ctx context.Context, filePath string, src io.Reader, chunkSize int64) error
	BeginMultipartUpload(ctx context.Context, filePath string) (MultipartSession, error)
}
