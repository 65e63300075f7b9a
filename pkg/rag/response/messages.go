package response

import (
	"context"
	"errors"

	"ai-chatbot-be/pkg/errs"
)

// FailureMessage turns a Generate error into a short text a chat client can
// show in place of a reply.
func FailureMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, errs.ErrNormalization):
		return "Sorry, I could not read that message. Please send it as plain text."
	case errors.Is(err, context.Canceled):
		return "The request was cancelled."
	case errors.Is(err, context.DeadlineExceeded):
		return "Sorry, that took too long. Please try again."
	}

	kind, ok := errs.KindOf(err)
	if !ok {
		return "Sorry, I encountered an error. Please try again."
	}
	switch kind {
	case errs.KindRateLimited:
		return "I am receiving too many requests right now. Please try again in a moment."
	case errs.KindTimeout:
		return "Sorry, that took too long. Please try again."
	case errs.KindInvalidRequest:
		return "Sorry, I could not process that request."
	default:
		return "The language model is unavailable at the moment. Please try again later."
	}
}
