package main

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/PaulBabatuyi/ilinkon-realtime/internal/chatv1"
	"github.com/PaulBabatuyi/ilinkon-realtime/internal/errs"
	"github.com/PaulBabatuyi/ilinkon-realtime/internal/pipeline"
)

// codeRateLimited is the error frame code for events dropped by the limiter.
const codeRateLimited = "rate_limited"

// toStatus maps an application error to a gRPC status.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	var code codes.Code
	switch errs.KindOf(err) {
	case errs.KindValidation:
		code = codes.InvalidArgument
	case errs.KindNotFound:
		code = codes.NotFound
	case errs.KindConflict:
		code = codes.AlreadyExists
	case errs.KindTransientDelivery:
		code = codes.Unavailable
	default:
		code = codes.Internal
	}
	return status.Error(code, errs.PublicMessage(err))
}

// errorFrame builds the frame sent back when an event is rejected.
func errorFrame(err error, clientRef string) *chatv1.ChatStreamResponse {
	return &chatv1.ChatStreamResponse{
		Type:      chatv1.FrameError,
		ClientRef: clientRef,
		Error: &chatv1.ErrorFrame{
			Code:    string(errs.KindOf(err)),
			Message: errs.PublicMessage(err),
		},
	}
}

// deliveryWarning summarizes a failed push for the sender's ack.
func deliveryWarning(res *pipeline.Result) *chatv1.DeliveryWarning {
	w := &chatv1.DeliveryWarning{
		Code:    string(errs.KindOf(res.PushErr)),
		Message: "message saved; push notification delivery failed",
	}
	if res.Report != nil {
		w.Sent, w.Delivered = res.Report.Sent, res.Report.Delivered
	}
	return w
}

func rateLimitedFrame(clientRef string) *chatv1.ChatStreamResponse {
	return &chatv1.ChatStreamResponse{
		Type:      chatv1.FrameError,
		ClientRef: clientRef,
		Error:     &chatv1.ErrorFrame{Code: codeRateLimited, Message: "too many messages, slow down"},
	}
}
