package spaces

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"dospaces/internal/port"
)

// DefaultUploadChunkSize is the default multipart part size. It satisfies
// the service's minimum part-size constraint for every part but the last.
const DefaultUploadChunkSize int64 = 8 * 1024 * 1024 // 8 MiB

// abortTimeout bounds the cleanup call issued on a failed upload. Cleanup
// runs on a background context so an abort still goes out when the caller's
// context is already canceled.
const abortTimeout = 30 * time.Second

// multipartSession is one server-issued upload session for a single key.
// Parts must arrive with contiguous 1-based part numbers; the submitted
// order defines the destination object's byte content.
type multipartSession struct {
	client   *Client
	key      string
	uploadID string
	nextPart int32
	parts    []types.CompletedPart
	closed   bool
}

var _ port.MultipartSession = (*multipartSession)(nil)

// BeginMultipartUpload initiates a multipart session for filePath and returns
// it without driving any further steps, for callers that manage parts
// themselves. The destination object is not visible until Complete succeeds.
func (c *Client) BeginMultipartUpload(ctx context.Context, filePath string) (port.MultipartSession, error) {
	out, err := c.api.CreateMultipartUpload(ctx, c.applyMultipartDefaults(&s3.CreateMultipartUploadInput{
		Bucket: aws.String(c.cfg.Bucket),
		Key:    aws.String(filePath),
	}))
	if err != nil {
		c.metrics.ObserveError("begin_multipart")
		return nil, fmt.Errorf("create multipart upload %q: %w", filePath, err)
	}

	uploadID := aws.ToString(out.UploadId)
	c.log.Debug("multipart upload started",
		zap.String("key", filePath),
		zap.String("upload_id", uploadID),
	)
	return &multipartSession{
		client:   c,
		key:      filePath,
		uploadID: uploadID,
		nextPart: 1,
	}, nil
}

// UploadID returns the server-issued session identifier.
func (s *multipartSession) UploadID() string {
	return s.uploadID
}

// Key returns the destination object key.
func (s *multipartSession) Key() string {
	return s.key
}

// UploadPart submits the next part and records its ETag for completion.
// partNumber must equal the previous part number plus one, starting at 1;
// non-contiguous numbering is rejected with ErrPartOutOfOrder.
func (s *multipartSession) UploadPart(ctx context.Context, partNumber int32, body io.Reader) (string, error) {
	if s.closed {
		return "", ErrSessionClosed
	}
	if partNumber != s.nextPart {
		return "", fmt.Errorf("%w: got part %d, want %d", ErrPartOutOfOrder, partNumber, s.nextPart)
	}

	counted := &countingReader{r: body}
	out, err := s.client.api.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:     aws.String(s.client.cfg.Bucket),
		Key:        aws.String(s.key),
		UploadId:   aws.String(s.uploadID),
		PartNumber: aws.Int32(partNumber),
		Body:       counted,
	})
	if err != nil {
		s.client.metrics.ObserveError("upload_part")
		return "", fmt.Errorf("upload part %d of %q: %w", partNumber, s.key, err)
	}

	s.parts = append(s.parts, types.CompletedPart{
		ETag:       out.ETag,
		PartNumber: aws.Int32(partNumber),
	})
	s.nextPart++
	s.client.metrics.ObservePart(counted.n)
	return aws.ToString(out.ETag), nil
}

// Complete submits the ordered part list, making the object atomically
// visible under its key. The session cannot be used afterwards.
func (s *multipartSession) Complete(ctx context.Context) error {
	if s.closed {
		return ErrSessionClosed
	}
	if len(s.parts) == 0 {
		return fmt.Errorf("complete multipart upload %q: no parts uploaded", s.key)
	}

	_, err := s.client.api.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(s.client.cfg.Bucket),
		Key:      aws.String(s.key),
		UploadId: aws.String(s.uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: s.parts,
		},
	})
	if err != nil {
		s.client.metrics.ObserveError("complete_multipart")
		return fmt.Errorf("complete multipart upload %q: %w", s.key, err)
	}

	s.closed = true
	s.client.log.Info("multipart upload completed",
		zap.String("key", s.key),
		zap.String("upload_id", s.uploadID),
		zap.Int("parts", len(s.parts)),
	)
	return nil
}

// Abort releases the session and its uploaded parts on the server. Safe to
// call regardless of how far the session progressed.
func (s *multipartSession) Abort(ctx context.Context) error {
	if s.closed {
		return ErrSessionClosed
	}
	s.closed = true

	_, err := s.client.api.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(s.client.cfg.Bucket),
		Key:      aws.String(s.key),
		UploadId: aws.String(s.uploadID),
	})
	if err != nil {
		return fmt.Errorf("abort multipart upload %q: %w", s.key, err)
	}

	s.client.metrics.ObserveAbort()
	s.client.log.Warn("multipart upload aborted",
		zap.String("key", s.key),
		zap.String("upload_id", s.uploadID),
	)
	return nil
}

// abort is the cleanup path for failed driver uploads. It uses a background
// context so the session is released even when ctx is already canceled.
func (s *multipartSession) abort() {
	ctx, cancel := context.WithTimeout(context.Background(), abortTimeout)
	defer cancel()
	if err := s.Abort(ctx); err != nil {
		s.client.log.Error("failed to abort multipart upload",
			zap.String("key", s.key),
			zap.String("upload_id", s.uploadID),
			zap.Error(err),
		)
	}
}

// UploadFileChunked uploads src to filePath as an ordered sequence of parts
// of up to chunkSize bytes. In-memory payloads (bytes or string readers)
// skip the multipart protocol and are written with a single call. A
// chunkSize of 0 or less selects the 8 MiB default. On any failure the
// session is aborted; it is never left dangling on the server.
func (c *Client) UploadFileChunked(ctx context.Context, filePath string, src io.Reader, chunkSize int64) error {
	switch src.(type) {
	case *bytes.Buffer, *bytes.Reader, *strings.Reader:
		return c.UploadFile(ctx, filePath, src)
	}

	if chunkSize <= 0 {
		chunkSize = c.uploadChunkSize()
	}

	sess, err := c.BeginMultipartUpload(ctx, filePath)
	if err != nil {
		return err
	}
	driver := sess.(*multipartSession)

	buf := make([]byte, chunkSize)
	part := int32(1)
	for {
		n, rerr := io.ReadFull(src, buf)
		if n > 0 {
			if _, uerr := driver.UploadPart(ctx, part, bytes.NewReader(buf[:n])); uerr != nil {
				driver.abort()
				return uerr
			}
			part++
		}
		if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
			break
		}
		if rerr != nil {
			driver.abort()
			return fmt.Errorf("read chunk for %q: %w", filePath, rerr)
		}
	}

	// An empty source yields no parts, which the completion call rejects.
	// Release the session and write the empty object directly.
	if part == 1 {
		driver.abort()
		return c.UploadFile(ctx, filePath, bytes.NewReader(nil))
	}

	if err := driver.Complete(ctx); err != nil {
		driver.abort()
		return err
	}
	return nil
}

func (c *Client) uploadChunkSize() int64 {
	if c.cfg.UploadChunkSize > 0 {
		return c.cfg.UploadChunkSize
	}
	return DefaultUploadChunkSize
}

// applyMultipartDefaults mirrors applyObjectDefaults for session creation.
func (c *Client) applyMultipartDefaults(in *s3.CreateMultipartUploadInput) *s3.CreateMultipartUploadInput {
	if c.cfg.CacheControl != "" {
		in.CacheControl = aws.String(c.cfg.CacheControl)
	}
	if c.cfg.ACL != "" {
		in.ACL = types.ObjectCannedACL(c.cfg.ACL)
	}
	if c.cfg.ServerSideEncryption != "" {
		in.ServerSideEncryption = types.ServerSideEncryption(c.cfg.ServerSideEncryption)
	}
	return in
}
