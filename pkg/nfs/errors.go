// Package nfs maps between the backend and the wire protocol of the file
// service.
package nfs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/containerd/log"

	"github.com/example/handlefs/pkg/api"
	"github.com/example/handlefs/pkg/fs"
)

// statusTable lists the sentinel errors with a dedicated status, in match
// order.
var statusTable = []struct {
	err    error
	status api.Status
}{
	{fs.ErrNotExist, api.Status_ERR_NOENT},
	{fs.ErrNotDir, api.Status_ERR_NOTDIR},
	{fs.ErrIsDir, api.Status_ERR_ISDIR},
	{fs.ErrIO, api.Status_ERR_IO},
	{fs.ErrNotEmpty, api.Status_ERR_NOTEMPTY},
	{fs.ErrInvalidHandle, api.Status_ERR_BADHANDLE},
	{fs.ErrInvalidName, api.Status_ERR_INVAL},
	{fs.ErrNotSupported, api.Status_ERR_NOTSUPP},
	{fs.ErrServerFault, api.Status_ERR_SERVERFAULT},
}

// MapErrorToStatus converts a backend error to a status code. Errors the
// backend did not classify become ERR_SERVERFAULT and are logged.
func MapErrorToStatus(ctx context.Context, err error) api.Status {
	if err == nil {
		return api.Status_OK
	}
	for _, e := range statusTable {
		if errors.Is(err, e.err) {
			return e.status
		}
	}

	LogUnknownError(ctx, err)
	return api.Status_ERR_SERVERFAULT
}

// LogUnknownError logs an error that has no status mapping.
func LogUnknownError(ctx context.Context, err error) {
	log.G(ctx).WithError(err).WithField("type", fmt.Sprintf("%T", err)).Error("unmapped error")
}

// LogRequest logs a received request.
func LogRequest(ctx context.Context, op, reqID, clientAddr string) {
	log.G(ctx).WithFields(log.Fields{
		"op":     op,
		"req":    reqID,
		"client": clientAddr,
	}).Debug("request")
}

// LogResponse logs the outcome of a request.
func LogResponse(ctx context.Context, op, reqID string, status api.Status, duration time.Duration) {
	entry := log.G(ctx).WithFields(log.Fields{
		"op":       op,
		"req":      reqID,
		"status":   status.String(),
		"duration": duration,
	})
	if status == api.Status_OK {
		entry.Debug("response")
	} else {
		entry.Info("response")
	}
}

// LogError logs a failed request.
func LogError(ctx context.Context, op, reqID string, err error) {
	log.G(ctx).WithError(err).WithFields(log.Fields{
		"op":  op,
		"req": reqID,
	}).Warn("request failed")
}

// NFSError is an error carrying a protocol status.
type NFSError struct {
	Status  api.Status
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *NFSError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (underlying: %v)", e.Status.String(), e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Status.String(), e.Message)
}

// Unwrap returns the underlying error.
func (e *NFSError) Unwrap() error {
	return e.Cause
}

// NewNFSError creates a new NFSError.
func NewNFSError(status api.Status, message string, cause error) *NFSError {
	return &NFSError{
		Status:  status,
		Message: message,
		Cause:   cause,
	}
}
