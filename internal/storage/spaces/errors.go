package spaces

import (
	"errors"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// Sentinel errors returned by the client. Callers distinguish error causes
// with errors.Is rather than by inspecting remote error codes themselves.
var (
	// ErrBucketNotFound reports that the addressed bucket does not exist.
	ErrBucketNotFound = errors.New("spaces: bucket not found")

	// ErrFolderNotFound reports that a folder's marker object is absent.
	// Listing the contents of a missing folder is a precondition violation,
	// not an empty result.
	ErrFolderNotFound = errors.New("spaces: folder not found")

	// ErrObjectNotFound reports that the addressed object does not exist.
	ErrObjectNotFound = errors.New("spaces: object not found")

	// ErrPartOutOfOrder reports a part submitted with a non-contiguous part
	// number. Parts must be numbered 1, 2, 3, ... in submission order.
	ErrPartOutOfOrder = errors.New("spaces: multipart part out of order")

	// ErrSessionClosed reports an operation on a multipart session that has
	// already been completed or aborted.
	ErrSessionClosed = errors.New("spaces: multipart session closed")
)

// isNotFound reports whether err is a remote not-found condition, as opposed
// to a transport or permission failure.
func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NotFound" || code == "NoSuchKey" || code == "NoSuchBucket" || code == "404"
	}
	return false
}

// isBucketAlreadyOwned reports whether err means the bucket already exists
// and belongs to the caller, which CreateBucket treats as benign.
func isBucketAlreadyOwned(err error) bool {
	var owned *types.BucketAlreadyOwnedByYou
	if errors.As(err, &owned) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "BucketAlreadyOwnedByYou"
	}
	return false
}
