package apperr

import (
	"context"
	"errors"
	"net"

	"github.com/aws/smithy-go"
)

var awsCodeKinds = map[string]Kind{
	"AccessDenied":                           KindPermissionDenied,
	"AccessDeniedException":                  KindPermissionDenied,
	"AllAccessDisabled":                      KindPermissionDenied,
	"InvalidAccessKeyId":                     KindPermissionDenied,
	"SignatureDoesNotMatch":                  KindPermissionDenied,
	"UnrecognizedClientException":            KindPermissionDenied,
	"ExpiredToken":                           KindPermissionDenied,
	"ExpiredTokenException":                  KindPermissionDenied,
	"ThrottlingException":                    KindThrottled,
	"Throttling":                             KindThrottled,
	"ProvisionedThroughputExceededException": KindThrottled,
	"RequestLimitExceeded":                   KindThrottled,
	"SlowDown":                               KindThrottled,
	"TooManyRequestsException":               KindThrottled,
	"NoSuchKey":                              KindNotFound,
	"NotFound":                               KindNotFound,
	"NoSuchBucket":                           KindStoreUnavailable,
	"ResourceNotFoundException":              KindStoreUnavailable,
	"ServiceUnavailable":                     KindStoreUnavailable,
	"InternalServerError":                    KindStoreUnavailable,
	"InternalError":                          KindStoreUnavailable,
	"RequestTimeout":                         KindStoreUnavailable,
	"EntityTooLarge":                         KindInvalid,
	"ValidationException":                    KindInvalid,
}

// FromAWS classifies an error returned by an AWS SDK call. Errors already
// classified are returned unchanged.
func FromAWS(op string, err error) error {
	if err == nil {
		return nil
	}
	var classified *Error
	if errors.As(err, &classified) {
		return err
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if kind, ok := awsCodeKinds[apiErr.ErrorCode()]; ok {
			return &Error{Kind: kind, Op: op, Err: err}
		}
		if apiErr.ErrorFault() == smithy.FaultServer {
			return &Error{Kind: KindStoreUnavailable, Op: op, Err: err}
		}
		return &Error{Kind: KindUnknown, Op: op, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &Error{Kind: KindStoreUnavailable, Op: op, Err: err}
	}
	return &Error{Kind: KindUnknown, Op: op, Err: err}
}
