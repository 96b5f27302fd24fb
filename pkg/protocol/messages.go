/*
Package protocol defines the request and response envelopes exchanged
between a controller and a worker, their protobuf wire encoding, and the
typed Send/Receive operations layered on a transport.Conn.

# Envelopes

Every message is an envelope holding a RequestType tag and at most one
payload. The payload is a sealed interface, so a Request can only carry one
of WelcomeRequest, CopyInRequest, ExecuteRequest or CopyOutRequest, and a
Response one of the matching response kinds:

	req := protocol.NewRequest(&protocol.CopyInRequest{
		Pathname: "scene.blend",
		Content:  data,
	})
	// req.RequestType == protocol.RequestTypeCopyIn

A worker answers every request with exactly one response whose
RequestType equals the request's RequestType. A request the worker cannot
serve (unknown tag, or a payload of the wrong kind) is answered with an
envelope that carries no payload and a non-empty Error.

# Wire format

Envelopes are protobuf messages (proto3 semantics):

	message Request {
	  RequestType request_type = 1;
	  oneof payload {
	    WelcomeRequest  welcome_request  = 2;
	    CopyInRequest   copy_in_request  = 3;
	    ExecuteRequest  execute_request  = 4;
	    CopyOutRequest  copy_out_request = 5;
	  }
	}

	message Response {
	  RequestType request_type = 1;
	  oneof payload {
	    WelcomeResponse welcome_response  = 2;
	    CopyInResponse  copy_in_response  = 3;
	    ExecuteResponse execute_response  = 4;
	    CopyOutResponse copy_out_response = 5;
	  }
	  string error = 6;
	}

Unknown fields are skipped. Malformed input is reported as a *DecodeError
and never yields a default-valued envelope.
*/
package protocol

import "fmt"

// RequestType is the envelope discriminant
type RequestType int32

const (
	RequestTypeUnknown RequestType = 0
	RequestTypeWelcome RequestType = 1
	RequestTypeCopyIn  RequestType = 2
	RequestTypeExecute RequestType = 3
	RequestTypeCopyOut RequestType = 4
)

// String returns the lower-case name used in logs and metric labels
func (t RequestType) String() string {
	switch t {
	case RequestTypeWelcome:
		return "welcome"
	case RequestTypeCopyIn:
		return "copy_in"
	case RequestTypeExecute:
		return "execute"
	case RequestTypeCopyOut:
		return "copy_out"
	default:
		return fmt.Sprintf("unknown(%d)", int32(t))
	}
}

// Known reports whether t names one of the four commands
func (t RequestType) Known() bool {
	return t >= RequestTypeWelcome && t <= RequestTypeCopyOut
}

// RequestPayload is implemented by the four request kinds
type RequestPayload interface {
	Kind() RequestType
	isRequestPayload()
}

// ResponsePayload is implemented by the four response kinds
type ResponsePayload interface {
	Kind() RequestType
	isResponsePayload()
}

// Request is the envelope sent by the controller
type Request struct {
	RequestType RequestType
	Payload     RequestPayload
}

// NewRequest wraps payload in an envelope tagged with its kind
func NewRequest(payload RequestPayload) *Request {
	return &Request{RequestType: payload.Kind(), Payload: payload}
}

// Response is the envelope returned by the worker
type Response struct {
	RequestType RequestType
	Payload     ResponsePayload

	// Error is set when the worker could not route the request. Handler
	// failures are reported inside the payload instead.
	Error string
}

// NewResponse wraps payload in an envelope tagged with requestType
func NewResponse(requestType RequestType, payload ResponsePayload) *Response {
	return &Response{RequestType: requestType, Payload: payload}
}

// NewErrorResponse builds a payload-less response carrying msg
func NewErrorResponse(requestType RequestType, msg string) *Response {
	return &Response{RequestType: requestType, Error: msg}
}

// WelcomeRequest asks the worker to identify itself
type WelcomeRequest struct{}

// WelcomeResponse reports the worker's identity and capacity
type WelcomeResponse struct {
	Hostname  string
	CoreCount uint32
}

// CopyInRequest carries a file to store under Pathname
type CopyInRequest struct {
	Pathname string
	Content  []byte
}

// CopyInResponse reports whether the file was written
type CopyInResponse struct {
	Success bool
}

// ExecuteRequest names a worker-local executable and its arguments.
// Arguments holds argv[1:]; the executable name is never repeated in it.
type ExecuteRequest struct {
	Executable string
	Arguments  []string
}

// ExecuteResponse carries the child's exit status, or -1 when the
// process could not be started.
type ExecuteResponse struct {
	Status int32
}

// CopyOutRequest asks for the contents of Pathname
type CopyOutRequest struct {
	Pathname string
}

// CopyOutResponse carries the file contents when Success is true
type CopyOutResponse struct {
	Success bool
	Content []byte
}

func (*WelcomeRequest) Kind() RequestType  { return RequestTypeWelcome }
func (*CopyInRequest) Kind() RequestType   { return RequestTypeCopyIn }
func (*ExecuteRequest) Kind() RequestType  { return RequestTypeExecute }
func (*CopyOutRequest) Kind() RequestType  { return RequestTypeCopyOut }
func (*WelcomeResponse) Kind() RequestType { return RequestTypeWelcome }
func (*CopyInResponse) Kind() RequestType  { return RequestTypeCopyIn }
func (*ExecuteResponse) Kind() RequestType { return RequestTypeExecute }
func (*CopyOutResponse) Kind() RequestType { return RequestTypeCopyOut }

func (*WelcomeRequest) isRequestPayload()   {}
func (*CopyInRequest) isRequestPayload()    {}
func (*ExecuteRequest) isRequestPayload()   {}
func (*CopyOutRequest) isRequestPayload()   {}
func (*WelcomeResponse) isResponsePayload() {}
func (*CopyInResponse) isResponsePayload()  {}
func (*ExecuteResponse) isResponsePayload() {}
func (*CopyOutResponse) isResponsePayload() {}
