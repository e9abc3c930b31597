package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies an error for presentation.
type Kind string

const (
	KindNone        Kind = ""
	KindTransport   Kind = "transport"
	KindApplication Kind = "application"
	KindValidation  Kind = "validation"
	KindDevice      Kind = "device"
	KindState       Kind = "state"
	KindUnknown     Kind = "unknown"
)

// State errors returned by the login flow and page controllers.
var (
	ErrInvalidTransition    = stderrors.New("operation not allowed in the current step")
	ErrBusy                 = stderrors.New("a request is already in progress")
	ErrCameraBusy           = stderrors.New("camera is already in use")
	ErrAlreadyAuthenticated = stderrors.New("already logged in")
	ErrMutationInFlight     = stderrors.New("this action is already in progress")
	ErrNoSession            = stderrors.New("no active session, please log in")
)

// TransportError is a failure to obtain a well-formed response: the network
// failed, the server answered with a non-2xx status without an error
// envelope, or the body could not be decoded.
type TransportError struct {
	Op         string `json:"op"`
	StatusCode int    `json:"status_code,omitempty"`
	Err        error  `json:"-"`
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && (e.StatusCode < 200 || e.StatusCode > 299):
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	case e.StatusCode != 0:
		return fmt.Sprintf("malformed response: %v", e.Err)
	case e.Err != nil:
		return fmt.Sprintf("network error: %v", e.Err)
	default:
		return "network error"
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// ApplicationError is a well-formed error envelope returned by the server.
type ApplicationError struct {
	Op         string `json:"op"`
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
}

func (e *ApplicationError) Error() string {
	return e.Message
}

// ValidationError is raised before any external call when user input is
// rejected locally.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return e.Message
}

// DeviceError reports that a local capability such as the camera could not
// be used.
type DeviceError struct {
	Op  string `json:"op"`
	Err error  `json:"-"`
}

func (e *DeviceError) Error() string {
	if e.Err == nil {
		return "camera unavailable"
	}
	return fmt.Sprintf("camera unavailable: %v", e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// NewTransportError wraps a network failure.
func NewTransportError(op string, err error) *TransportError {
	return &TransportError{Op: op, Err: err}
}

// NewStatusError reports a non-2xx response without an error envelope.
func NewStatusError(op string, status int) *TransportError {
	return &TransportError{Op: op, StatusCode: status}
}

// NewMalformedResponse reports a 2xx response whose body could not be used.
func NewMalformedResponse(op string, status int, err error) *TransportError {
	return &TransportError{Op: op, StatusCode: status, Err: err}
}

// NewApplicationError builds an error from a server error envelope.
func NewApplicationError(op string, status int, message string) *ApplicationError {
	return &ApplicationError{Op: op, StatusCode: status, Message: message}
}

// NewValidation builds a ValidationError for field.
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// NewDeviceError wraps a camera failure.
func NewDeviceError(op string, err error) *DeviceError {
	return &DeviceError{Op: op, Err: err}
}

// KindOf classifies err.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}

	var (
		transport   *TransportError
		application *ApplicationError
		validation  *ValidationError
		device      *DeviceError
	)

	switch {
	case stderrors.As(err, &validation):
		return KindValidation
	case stderrors.As(err, &application):
		return KindApplication
	case stderrors.As(err, &transport):
		return KindTransport
	case stderrors.As(err, &device):
		return KindDevice
	case stderrors.Is(err, ErrInvalidTransition),
		stderrors.Is(err, ErrBusy),
		stderrors.Is(err, ErrCameraBusy),
		stderrors.Is(err, ErrAlreadyAuthenticated),
		stderrors.Is(err, ErrMutationInFlight),
		stderrors.Is(err, ErrNoSession):
		return KindState
	}

	return KindUnknown
}

// Message returns the text shown inline to the user for err. Server
// messages are passed through untouched; everything else gets a derived
// message.
func Message(err error) string {
	if err == nil {
		return ""
	}

	var (
		application *ApplicationError
		validation  *ValidationError
		transport   *TransportError
		device      *DeviceError
	)

	switch {
	case stderrors.As(err, &application):
		return application.Message
	case stderrors.As(err, &validation):
		return validation.Message
	case stderrors.As(err, &transport):
		return transport.Error()
	case stderrors.As(err, &device):
		return device.Error()
	}

	return err.Error()
}
