package services

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrInProgress    = errors.New("already in progress")
	ErrDisqualified  = errors.New("disqualified")
	ErrTransient     = errors.New("transient failure")
	ErrAuthOrQuota   = errors.New("authentication or quota failure")
	ErrMalformed     = errors.New("malformed result")
	ErrInconsistent  = errors.New("inconsistent state")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrExternalTool  = errors.New("external tool error")
	ErrCanceled      = errors.New("canceled")
	ErrFailed        = errors.New("ingestion failed")
)

// ErrorKind is the persisted label for an error marker.
type ErrorKind string

const (
	KindNone          ErrorKind = ""
	KindNotFound      ErrorKind = "not_found"
	KindInProgress    ErrorKind = "in_progress"
	KindDisqualified  ErrorKind = "disqualified"
	KindTransient     ErrorKind = "transient"
	KindAuthOrQuota   ErrorKind = "auth_or_quota"
	KindMalformed     ErrorKind = "malformed"
	KindInconsistent  ErrorKind = "inconsistent"
	KindValidation    ErrorKind = "validation"
	KindConfiguration ErrorKind = "configuration"
	KindExternalTool  ErrorKind = "external_tool"
	KindCanceled      ErrorKind = "canceled"
	KindFailed        ErrorKind = "failed"
	KindUnknown       ErrorKind = "unknown"
)

// Order matters: the first marker an error matches decides its kind.
var kindMarkers = []struct {
	marker error
	kind   ErrorKind
}{
	{ErrCanceled, KindCanceled},
	{ErrInconsistent, KindInconsistent},
	{ErrAuthOrQuota, KindAuthOrQuota},
	{ErrMalformed, KindMalformed},
	{ErrDisqualified, KindDisqualified},
	{ErrTransient, KindTransient},
	{ErrInProgress, KindInProgress},
	{ErrNotFound, KindNotFound},
	{ErrValidation, KindValidation},
	{ErrConfiguration, KindConfiguration},
	{ErrExternalTool, KindExternalTool},
	{ErrFailed, KindFailed},
}

// Error carries a taxonomy marker plus the stage context it was raised in.
type Error struct {
	Marker    error
	Stage     string
	Operation string
	Message   string
	Code      string
	Cause     error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Marker != nil {
		b.WriteString(e.Marker.Error())
		b.WriteString(": ")
	}
	b.WriteString(buildDetail(e.Stage, e.Operation, e.Message))
	if e.Code != "" {
		b.WriteString(" (code=")
		b.WriteString(e.Code)
		b.WriteByte(')')
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Marker != nil {
		errs = append(errs, e.Marker)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	return WrapWithCode(marker, stage, operation, message, "", err)
}

// WrapWithCode is Wrap plus a diagnostic code (HTTP status, provider status,
// request id) that is surfaced through Details.
func WrapWithCode(marker error, stage, operation, message, code string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	return &Error{
		Marker:    marker,
		Stage:     strings.TrimSpace(stage),
		Operation: strings.TrimSpace(operation),
		Message:   strings.TrimSpace(message),
		Code:      strings.TrimSpace(code),
		Cause:     err,
	}
}

// Kind classifies err against the taxonomy.
func Kind(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	// The first service error in the tree carries the most specific intent;
	// for joined errors that is the leading one.
	var svcErr *Error
	if errors.As(err, &svcErr) && svcErr.Marker != nil {
		for _, km := range kindMarkers {
			if errors.Is(svcErr.Marker, km.marker) {
				return km.kind
			}
		}
	}
	for _, km := range kindMarkers {
		if errors.Is(err, km.marker) {
			return km.kind
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	return KindUnknown
}

// Retryable reports whether a caller-driven retry may succeed without
// operator intervention.
func Retryable(err error) bool {
	return Kind(err) == KindTransient
}

// ErrorDetails summarizes an error for structured logging.
type ErrorDetails struct {
	Kind      ErrorKind
	Stage     string
	Operation string
	Message   string
	Code      string
	Hint      string
	Cause     error
}

// Details extracts the outermost service error annotations from err.
func Details(err error) ErrorDetails {
	details := ErrorDetails{Kind: Kind(err)}
	if err == nil {
		return details
	}
	var svcErr *Error
	if errors.As(err, &svcErr) {
		details.Stage = svcErr.Stage
		details.Operation = svcErr.Operation
		details.Message = err.Error()
		details.Code = svcErr.Code
		details.Cause = svcErr.Cause
	} else {
		details.Message = err.Error()
	}
	details.Hint = hintFor(details.Kind)
	return details
}

func hintFor(kind ErrorKind) string {
	switch kind {
	case KindTransient:
		return "retry the ingestion; the failure may be temporary"
	case KindAuthOrQuota:
		return "check speech-to-text credentials and quota"
	case KindMalformed:
		return "source produced no usable segments; inspect the video and audio track"
	case KindInconsistent:
		return "vector and relational stores disagree; rerun ingestion to self-heal"
	case KindConfiguration:
		return "check the configuration file"
	case KindExternalTool:
		return "check ffmpeg/uvx installation and logs"
	case KindInProgress:
		return "wait for the running ingestion to finish"
	default:
		return ""
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
