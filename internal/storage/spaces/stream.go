package spaces

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"dospaces/internal/metrics"
	"dospaces/internal/port"
)

// Default chunk sizes for the two streamed-read entry points.
const (
	DefaultStreamChunkSize = 8 * 1024        // 8 KiB
	DefaultReadChunkSize   = 8 * 1024 * 1024 // 8 MiB
)

// objectStream reads one open GET response body as fixed-size chunks. It is
// single-pass and bound to the lifetime of that response.
type objectStream struct {
	body    io.ReadCloser
	buf     []byte
	metrics *metrics.Collector
	done    bool
}

// Next returns the next chunk of up to len(buf) bytes, or io.EOF once the
// body is exhausted. The returned slice is reused by the following call.
func (s *objectStream) Next() ([]byte, error) {
	if s.done {
		return nil, io.EOF
	}

	n, err := io.ReadFull(s.body, s.buf)
	if n > 0 {
		s.metrics.AddBytesDownloaded(int64(n))
	}
	switch {
	case err == io.EOF:
		s.done = true
		return nil, io.EOF
	case err == io.ErrUnexpectedEOF:
		// Final short chunk.
		s.done = true
		return s.buf[:n], nil
	case err != nil:
		s.done = true
		return nil, fmt.Errorf("read object body: %w", err)
	}
	return s.buf[:n], nil
}

// Close releases the underlying response body. Required when the stream is
// abandoned before exhaustion.
func (s *objectStream) Close() error {
	s.done = true
	return s.body.Close()
}

// StreamFileContent opens the object at filePath and returns its body as a
// sequence of chunks of up to chunkSize bytes. A chunkSize of 0 or less
// selects the 8 KiB default. Returns ErrObjectNotFound when the object does
// not exist.
func (c *Client) StreamFileContent(ctx context.Context, filePath string, chunkSize int) (port.ObjectStream, error) {
	if chunkSize <= 0 {
		chunkSize = c.streamChunkSize()
	}
	return c.openStream(ctx, filePath, chunkSize)
}

// ReadFile is StreamFileContent with an 8 MiB default chunk size.
func (c *Client) ReadFile(ctx context.Context, filePath string, chunkSize int) (port.ObjectStream, error) {
	if chunkSize <= 0 {
		chunkSize = c.readChunkSize()
	}
	return c.openStream(ctx, filePath, chunkSize)
}

func (c *Client) openStream(ctx context.Context, filePath string, chunkSize int) (port.ObjectStream, error) {
	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.cfg.Bucket),
		Key:    aws.String(filePath),
	})
	if err != nil {
		c.metrics.ObserveError("read_file")
		if isNotFound(err) {
			return nil, fmt.Errorf("object %q: %w", filePath, ErrObjectNotFound)
		}
		return nil, fmt.Errorf("get object %q: %w", filePath, err)
	}

	c.metrics.ObserveDownload()
	c.log.Debug("opened object stream",
		zap.String("key", filePath),
		zap.Int("chunk_size", chunkSize),
	)
	return &objectStream{
		body:    out.Body,
		buf:     make([]byte, chunkSize),
		metrics: c.metrics,
	}, nil
}

func (c *Client) streamChunkSize() int {
	if c.cfg.StreamChunkSize > 0 {
		return c.cfg.StreamChunkSize
	}
	return DefaultStreamChunkSize
}

func (c *Client) readChunkSize() int {
	if c.cfg.ReadChunkSize > 0 {
		return c.cfg.ReadChunkSize
	}
	return DefaultReadChunkSize
}
