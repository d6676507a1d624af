package errtax

import "fmt"

// SerializableError is the wire form of any error that crosses an Engine
// boundary: enough to reconstruct the type, message, and cause chain on
// the receiving side after a round trip through JSON.
type SerializableError struct {
	Type       string             `json:"type"`
	Message    string             `json:"message"`
	StackTrace string             `json:"stackTrace,omitempty"`
	DMLErrors  []DMLError         `json:"dmlErrors,omitempty"`
	Cause      *SerializableError `json:"cause,omitempty"`
}

// Marshal walks err's cause chain (see Cause) into a SerializableError.
// Unrecognized error types marshal as a generic "error" with no DML
// detail, so Marshal never drops an error on the floor.
func Marshal(err error) *SerializableError {
	if err == nil {
		return nil
	}
	se := &SerializableError{
		Message: err.Error(),
		Type:    classify(err),
	}
	if dmlErr, ok := err.(*dmlErrorsHolder); ok {
		se.DMLErrors = dmlErr.DMLErrors
	}
	if cause := Cause(err); cause != nil && cause != err {
		se.Cause = Marshal(cause)
	}
	return se
}

func classify(err error) string {
	switch err.(type) {
	case *PermanentFailure:
		return "PermanentFailure"
	case *StepInitializationError:
		return "StepInitializationError"
	case *ValidationError:
		return "ValidationError"
	case *PublishingError:
		return "PublishingError"
	default:
		return "error"
	}
}

// dmlErrorsHolder lets callers attach DML detail to an otherwise plain
// error before marshalling, without adding a DMLErrors field to every
// taxonomy type.
type dmlErrorsHolder struct {
	error
	DMLErrors []DMLError
}

func WithDMLErrors(err error, dml []DMLError) error {
	if err == nil {
		return nil
	}
	return &dmlErrorsHolder{error: err, DMLErrors: dml}
}

// Parse reconstructs an error from a SerializableError, preserving its
// message and cause chain. PermanentFailure, StepInitializationError and
// ValidationError come back as those taxonomy types; PublishingError and
// unrecognized types come back as a generic error, since the wire form
// does not carry a PublishingError's job ID lists or per-index errors.
func (e *SerializableError) Parse() error {
	if e == nil {
		return nil
	}
	var cause error
	if e.Cause != nil {
		cause = e.Cause.Parse()
	}
	msg := e.Message
	if cause != nil {
		msg = trimCauseSuffix(e.Message, cause.Error())
	}
	switch e.Type {
	case "PermanentFailure":
		return NewPermanentFailure(msg, cause)
	case "StepInitializationError":
		return NewStepInitializationError(msg, cause)
	case "ValidationError":
		return NewValidationError(e.Message)
	}
	if cause == nil {
		return fmt.Errorf("%s", e.Message)
	}
	return fmt.Errorf("%s: %w", msg, cause)
}

func trimCauseSuffix(msg, causeMsg string) string {
	suffix := ": " + causeMsg
	if len(msg) > len(suffix) && msg[len(msg)-len(suffix):] == suffix {
		return msg[:len(msg)-len(suffix)]
	}
	return msg
}
