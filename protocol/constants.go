package protocol

// EnvelopeVersion identifies the envelope format written by this package.
const EnvelopeVersion = "caffe/1"

// Content types set by the built-in responders.
const (
	ContentTypeJSON = "application/json"
	ContentTypeText = "text/plain; charset=utf-8"
)

// Header names shared by middleware and transports.
const (
	HeaderContentType   = "Content-Type"
	HeaderRequestID     = "X-Request-ID"
	HeaderAuthorization = "Authorization"
	HeaderForwardedFor  = "X-Forwarded-For"
	HeaderRealIP        = "X-Real-IP"
)
