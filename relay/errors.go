package relay

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/ollama/ollama/api"
	"github.com/openai/openai-go/v3"

	"askthecity/model"
)

// Classify decides whether the client may retry a failed turn. Only
// transport-level failures that happened before any chunk reached the
// client are retryable; once text is on screen a retry would duplicate it.
func Classify(err error, emitted bool) model.ErrorKind {
	if err == nil || emitted {
		return model.ErrorKindFatal
	}
	if IsTransient(err) {
		return model.ErrorKindRetryable
	}
	return model.ErrorKindFatal
}

// IsTransient reports whether err is a connection-level failure or an
// upstream overload rather than a problem with the request itself.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrGenerationTimeout) || errors.Is(err, context.Canceled) {
		return false
	}

	if errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	// *url.Error satisfies net.Error too, so match the socket-level failure
	// underneath rather than any HTTP client error. TLS and URL problems are
	// not transient.
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		switch opErr.Op {
		case "dial", "read", "write":
			return true
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var oaiErr *openai.Error
	if errors.As(err, &oaiErr) {
		return retryableStatus(oaiErr.StatusCode)
	}
	var antErr *anthropic.Error
	if errors.As(err, &antErr) {
		return retryableStatus(antErr.StatusCode)
	}
	var olErr api.StatusError
	if errors.As(err, &olErr) {
		return retryableStatus(olErr.StatusCode)
	}

	return false
}

func retryableStatus(code int) bool {
	return code == 429 || code == 502 || code == 503 || code == 504
}
