// Package sink implements the external destinations of the parking simulator:
// the local snapshot store, the blob uploader and the message-stream publishers.
//
// Every type here satisfies one of the small interfaces declared in sim/
// (SnapshotStore, BlobUploader, StreamPublisher), so the engine never depends
// on a cloud SDK directly.
package sink

import "errors"

var (
	// ErrBlobNotConfigured is returned when blob upload is requested without an account or container.
	ErrBlobNotConfigured = errors.New("blob storage not configured")
	// ErrStreamNotConfigured is returned when streaming is requested without a destination.
	ErrStreamNotConfigured = errors.New("stream destination not configured")
)
