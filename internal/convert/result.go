package convert

import (
	"context"
	"errors"

	"github.com/dgallion1/pdfmd/internal/extract"
	"github.com/dgallion1/pdfmd/internal/staging"
)

// Kind classifies a failed conversion.
type Kind string

const (
	InvalidInput          Kind = "InvalidInput"
	MalformedStructure    Kind = "MalformedStructure"
	UnsupportedFeature    Kind = "UnsupportedFeature"
	EncryptedDocument     Kind = "EncryptedDocument"
	ResourceLimitExceeded Kind = "ResourceLimitExceeded"
	StagingIOFailure      Kind = "StagingIOFailure"
	Canceled              Kind = "Canceled"
	Internal              Kind = "Internal"
)

// Kinds lists every failure kind in a stable order.
var Kinds = []Kind{
	InvalidInput, MalformedStructure, UnsupportedFeature, EncryptedDocument,
	ResourceLimitExceeded, StagingIOFailure, Canceled, Internal,
}

// ClientError reports whether the caller, not the document or the service,
// is at fault.
func (k Kind) ClientError() bool { return k == InvalidInput }

// Client-facing messages. Nothing else about a failure leaves the service.
const (
	MsgNoFile        = "No file uploaded"
	MsgNotPDF        = "File is not a PDF"
	MsgConvertFailed = "Failed to convert PDF"
)

// Failure describes why a conversion did not succeed.
type Failure struct {
	Kind    Kind
	Message string
	Err     error // for logs only
}

// Result is the outcome of one conversion: exactly one of Markdown (when
// Failure is nil) or Failure is meaningful.
type Result struct {
	Markdown string
	Failure  *Failure
}

func (r Result) OK() bool { return r.Failure == nil }

func success(md string) Result { return Result{Markdown: md} }

func failure(kind Kind, msg string, err error) Result {
	return Result{Failure: &Failure{Kind: kind, Message: msg, Err: err}}
}

// Classify maps an error from staging or extraction onto a failure kind.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, staging.ErrEmpty):
		return InvalidInput
	case errors.Is(err, staging.ErrIO), errors.Is(err, staging.ErrClosed), errors.Is(err, extract.ErrSourceRead):
		return StagingIOFailure
	case errors.Is(err, extract.ErrEncrypted):
		return EncryptedDocument
	case errors.Is(err, extract.ErrLimit), errors.Is(err, context.DeadlineExceeded):
		return ResourceLimitExceeded
	case errors.Is(err, extract.ErrUnsupported):
		return UnsupportedFeature
	case errors.Is(err, extract.ErrMalformed):
		return MalformedStructure
	case errors.Is(err, context.Canceled):
		return Canceled
	}
	return Internal
}
