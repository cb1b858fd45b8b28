package grpc

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/turtacn/deadline-agent/pkg/errors"
)

var grpcCodes = map[errors.ErrorCode]codes.Code{
	errors.ErrCodeBadRequest:               codes.InvalidArgument,
	errors.ErrCodeValidation:               codes.InvalidArgument,
	errors.ErrCodeRuleInvalid:              codes.InvalidArgument,
	errors.ErrCodeCalendarRange:            codes.OutOfRange,
	errors.ErrCodeAIInputInvalid:           codes.InvalidArgument,
	errors.ErrCodeDocumentUnsupported:      codes.InvalidArgument,
	errors.ErrCodeDocumentTooLarge:         codes.ResourceExhausted,
	errors.ErrCodeDocumentExtractionFailed: codes.FailedPrecondition,
	errors.ErrCodeNotFound:                 codes.NotFound,
	errors.ErrCodeConflict:                 codes.AlreadyExists,
	errors.ErrCodeTooManyRequests:          codes.ResourceExhausted,
	errors.ErrCodeAIRateLimited:            codes.ResourceExhausted,
	errors.ErrCodeTimeout:                  codes.DeadlineExceeded,
	errors.ErrCodeServiceUnavailable:       codes.Unavailable,
	errors.ErrCodeAIModelNotAvailable:      codes.Unavailable,
	errors.ErrCodeFeatureDisabled:          codes.PermissionDenied,
	errors.ErrCodeNotImplemented:           codes.Unimplemented,
}

// toStatus converts a service error into a gRPC status. Codes without a
// client-facing mapping become Internal with the generic message.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request canceled")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	}
	if c, ok := grpcCodes[errors.GetCode(err)]; ok {
		return status.Error(c, errors.Message(err))
	}
	return status.Error(codes.Internal, errors.DefaultMessageForCode(errors.ErrCodeInternal))
}
