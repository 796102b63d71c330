package spaces_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// fakeUpload tracks an in-progress multipart upload.
type fakeUpload struct {
	key   string
	parts map[int32][]byte
}

// fakeAPI is a stateful in-memory test double for spaces.API.
type fakeAPI struct {
	mu       sync.Mutex
	buckets  map[string]bool
	objects  map[string][]byte
	uploads  map[string]*fakeUpload
	uploadID int

	// pageSize caps ListObjectsV2 pages to exercise pagination. 0 means 1000.
	pageSize int

	// failUploadPartOnCall makes the Nth UploadPart call fail. 0 disables.
	failUploadPartOnCall int
	// failComplete makes CompleteMultipartUpload fail.
	failComplete bool

	putCalls             int
	uploadPartCalls      int
	createMultipartCalls int
	abortCalls           int

	lastPut            *s3.PutObjectInput
	lastCompletedParts []int32
	lastPartSizes      []int
}

func newFakeAPI(buckets ...string) *fakeAPI {
	f := &fakeAPI{
		buckets: make(map[string]bool),
		objects: make(map[string][]byte),
		uploads: make(map[string]*fakeUpload),
	}
	for _, b := range buckets {
		f.buckets[b] = true
	}
	return f
}

func (f *fakeAPI) HeadBucket(_ context.Context, params *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.buckets[aws.ToString(params.Bucket)] {
		return nil, &types.NotFound{}
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeAPI) ListBuckets(_ context.Context, _ *s3.ListBucketsInput, _ ...func(*s3.Options)) (*s3.ListBucketsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.buckets))
	for b := range f.buckets {
		names = append(names, b)
	}
	sort.Strings(names)
	out := &s3.ListBucketsOutput{}
	for _, n := range names {
		out.Buckets = append(out.Buckets, types.Bucket{Name: aws.String(n)})
	}
	return out, nil
}

func (f *fakeAPI) CreateBucket(_ context.Context, params *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := aws.ToString(params.Bucket)
	if f.buckets[name] {
		return nil, &types.BucketAlreadyOwnedByYou{}
	}
	f.buckets[name] = true
	return &s3.CreateBucketOutput{}, nil
}

func (f *fakeAPI) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.putCalls++
	f.lastPut = params
	f.objects[aws.ToString(params.Key)] = data
	return &s3.PutObjectOutput{ETag: aws.String(`"fake-etag"`)}, nil
}

func (f *fakeAPI) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	data, ok := f.objects[aws.ToString(params.Key)]
	f.mu.Unlock()
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(data)),
		ContentLength: aws.Int64(int64(len(data))),
	}, nil
}

func (f *fakeAPI) HeadObject(_ context.Context, params *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[aws.ToString(params.Key)]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeAPI) DeleteObject(_ context.Context, params *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(params.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeAPI) DeleteObjects(_ context.Context, params *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range params.Delete.Objects {
		delete(f.objects, aws.ToString(id.Key))
	}
	return &s3.DeleteObjectsOutput{}, nil
}

// ListObjectsV2 supports Prefix, Delimiter "/", and continuation-token
// pagination over the combined key/common-prefix result set.
func (f *fakeAPI) ListObjectsV2(_ context.Context, params *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	prefix := aws.ToString(params.Prefix)
	delimiter := aws.ToString(params.Delimiter)

	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	type entry struct {
		value    string
		isCommon bool
	}
	var entries []entry
	seen := make(map[string]bool)
	for _, k := range keys {
		if delimiter == "" {
			entries = append(entries, entry{value: k})
			continue
		}
		rest := k[len(prefix):]
		if idx := strings.Index(rest, delimiter); idx >= 0 {
			cp := prefix + rest[:idx+len(delimiter)]
			if !seen[cp] {
				seen[cp] = true
				entries = append(entries, entry{value: cp, isCommon: true})
			}
		} else {
			entries = append(entries, entry{value: k})
		}
	}

	pageSize := f.pageSize
	if pageSize <= 0 {
		pageSize = 1000
	}
	// The continuation token marks the last entry of the previous page, so
	// pagination stays correct when objects are deleted between pages.
	start := 0
	if tok := aws.ToString(params.ContinuationToken); tok != "" {
		for start < len(entries) && entries[start].value <= tok {
			start++
		}
	}
	end := start + pageSize
	if end > len(entries) {
		end = len(entries)
	}

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(end < len(entries))}
	for _, e := range entries[start:end] {
		if e.isCommon {
			out.CommonPrefixes = append(out.CommonPrefixes, types.CommonPrefix{Prefix: aws.String(e.value)})
		} else {
			size := int64(len(f.objects[e.value]))
			out.Contents = append(out.Contents, types.Object{Key: aws.String(e.value), Size: aws.Int64(size)})
		}
	}
	if end < len(entries) && end > 0 {
		out.NextContinuationToken = aws.String(entries[end-1].value)
	}
	return out, nil
}

func (f *fakeAPI) CreateMultipartUpload(_ context.Context, params *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createMultipartCalls++
	f.uploadID++
	id := fmt.Sprintf("upload-%d", f.uploadID)
	f.uploads[id] = &fakeUpload{
		key:   aws.ToString(params.Key),
		parts: make(map[int32][]byte),
	}
	return &s3.CreateMultipartUploadOutput{
		Bucket:   params.Bucket,
		Key:      params.Key,
		UploadId: aws.String(id),
	}, nil
}

func (f *fakeAPI) UploadPart(_ context.Context, params *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploadPartCalls++
	if f.failUploadPartOnCall > 0 && f.uploadPartCalls == f.failUploadPartOnCall {
		return nil, errors.New("injected part failure")
	}
	up, ok := f.uploads[aws.ToString(params.UploadId)]
	if !ok {
		return nil, &types.NoSuchUpload{}
	}
	num := aws.ToInt32(params.PartNumber)
	up.parts[num] = data
	return &s3.UploadPartOutput{
		ETag: aws.String(fmt.Sprintf(`"etag-%d"`, num)),
	}, nil
}

func (f *fakeAPI) CompleteMultipartUpload(_ context.Context, params *s3.CompleteMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failComplete {
		return nil, errors.New("injected complete failure")
	}
	up, ok := f.uploads[aws.ToString(params.UploadId)]
	if !ok {
		return nil, &types.NoSuchUpload{}
	}

	var body []byte
	f.lastCompletedParts = nil
	f.lastPartSizes = nil
	prev := int32(0)
	for _, p := range params.MultipartUpload.Parts {
		num := aws.ToInt32(p.PartNumber)
		if num != prev+1 {
			return nil, &smithy.GenericAPIError{Code: "InvalidPart"}
		}
		data, ok := up.parts[num]
		if !ok {
			return nil, &smithy.GenericAPIError{Code: "InvalidPart"}
		}
		body = append(body, data...)
		f.lastCompletedParts = append(f.lastCompletedParts, num)
		f.lastPartSizes = append(f.lastPartSizes, len(data))
		prev = num
	}

	f.objects[up.key] = body
	delete(f.uploads, aws.ToString(params.UploadId))
	return &s3.CompleteMultipartUploadOutput{
		Key:  params.Key,
		ETag: aws.String(`"fake-multipart-etag"`),
	}, nil
}

func (f *fakeAPI) AbortMultipartUpload(_ context.Context, params *s3.AbortMultipartUploadInput, _ ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.abortCalls++
	delete(f.uploads, aws.ToString(params.UploadId))
	return &s3.AbortMultipartUploadOutput{}, nil
}
