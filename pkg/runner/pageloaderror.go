package runner

import (
	"fmt"
	"strings"

	"github.com/odvcencio/pharos/pkg/config"
	"github.com/odvcencio/pharos/pkg/driver"
	"github.com/odvcencio/pharos/pkg/protocol"
)

// Page-load error codes, from most to least specific. Classification picks
// the first code whose observation matched.
const (
	CodeFailedDocumentRequest   = "FAILED_DOCUMENT_REQUEST"
	CodeErroredDocumentRequest  = "ERRORED_DOCUMENT_REQUEST"
	CodeInsecureDocumentRequest = "INSECURE_DOCUMENT_REQUEST"
	CodePageHung                = "PAGE_HUNG"
	CodeNoFCP                   = "NO_FCP"
	CodeProtocolTimeout         = "PROTOCOL_TIMEOUT"
)

// PageLoadError reports that a navigation never yielded a usable page. It is
// both an error and a value: depending on the navigation's load failure mode
// it either aborts the run or is recorded as an artifact and skipped past.
type PageLoadError struct {
	Code string
	// FriendlyMessage is safe to surface to end users.
	FriendlyMessage string
	// Cause is the underlying observation, when one exists.
	Cause error
}

func (e *PageLoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.FriendlyMessage, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.FriendlyMessage)
}

func (e *PageLoadError) ErrorCode() string { return e.Code }

func (e *PageLoadError) Unwrap() error { return e.Cause }

// classifyNavigation inspects what the driver observed and decides whether
// the page load counts as failed. A nil return means the page is usable,
// possibly with warnings.
func classifyNavigation(outcome *driver.NavigationOutcome, navErr error, requireFCP bool) *PageLoadError {
	if navErr != nil {
		if protocol.IsTimeout(navErr) {
			return &PageLoadError{
				Code:            CodeProtocolTimeout,
				FriendlyMessage: "the browser stopped responding to protocol commands during the navigation",
				Cause:           navErr,
			}
		}
		return &PageLoadError{
			Code:            CodeFailedDocumentRequest,
			FriendlyMessage: "the navigation could not be issued",
			Cause:           navErr,
		}
	}
	if outcome.MainDocumentFailed {
		code := CodeErroredDocumentRequest
		message := "the main document request completed with a network error"
		switch {
		case strings.Contains(outcome.MainDocumentError, "net::ERR_CERT"),
			strings.Contains(outcome.MainDocumentError, "SSL"):
			code = CodeInsecureDocumentRequest
			message = "the main document request was blocked by a certificate error"
		case strings.Contains(outcome.MainDocumentError, "net::ERR_NAME_NOT_RESOLVED"),
			strings.Contains(outcome.MainDocumentError, "net::ERR_CONNECTION"):
			code = CodeFailedDocumentRequest
			message = "the main document request never completed"
		}
		return &PageLoadError{
			Code:            code,
			FriendlyMessage: message,
			Cause:           fmt.Errorf("main document: %s", outcome.MainDocumentError),
		}
	}
	if outcome.TimedOut && !outcome.LoadEventFired {
		return &PageLoadError{
			Code:            CodePageHung,
			FriendlyMessage: "the page never fired its load event within the wait budget",
		}
	}
	if requireFCP && outcome.LoadEventFired && !outcome.SawFirstPaint {
		return &PageLoadError{
			Code:            CodeNoFCP,
			FriendlyMessage: "the page loaded but never painted any content",
		}
	}
	return nil
}

// fatalFor reports whether the error aborts the run under the navigation's
// load failure policy.
func fatalFor(mode config.LoadFailureMode) bool {
	return mode != config.LoadFailureWarn
}
