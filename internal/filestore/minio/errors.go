package minio

import (
	"context"
	"errors"
	"net/http"

	miniogo "github.com/minio/minio-go/v7"

	"github.com/koustreak/dbmeta/internal/errs"
)

// mapError translates a MinIO SDK error into a *errs.Error, the same way
// the database drivers map their native errors.
func mapError(err error, msg string) *errs.Error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.Timeout, msg, err)
	}

	var resp miniogo.ErrorResponse
	if errors.As(err, &resp) {
		switch resp.Code {
		case "NoSuchBucket", "NoSuchKey", "NoSuchUpload":
			return errs.Wrap(errs.NotFound, msg, err)
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return errs.Wrap(errs.Permission, msg, err)
		case "InvalidBucketName", "InvalidObjectName", "KeyTooLongError", "EntityTooLarge":
			return errs.Wrap(errs.InvalidData, msg, err)
		case "RequestTimeout", "SlowDown":
			return errs.Wrap(errs.Timeout, msg, err)
		}

		switch resp.StatusCode {
		case http.StatusNotFound:
			return errs.Wrap(errs.NotFound, msg, err)
		case http.StatusForbidden, http.StatusUnauthorized:
			return errs.Wrap(errs.Permission, msg, err)
		case http.StatusBadRequest:
			return errs.Wrap(errs.InvalidData, msg, err)
		case http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return errs.Wrap(errs.Timeout, msg, err)
		}
	}

	// Anything else is treated as a transport failure.
	return errs.Wrap(errs.Connection, msg, err)
}
