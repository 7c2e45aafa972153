// Package constants contains shared HTTP header names, query parameter names and
// content type strings used across the service.
package constants

// Header names commonly used across the application.
const (
	// HeaderAccept is the HTTP "Accept" header name.
	HeaderAccept = "Accept"

	// HeaderContentType is the HTTP "Content-Type" header name.
	HeaderContentType = "Content-Type"

	// HeaderUserAgent is the HTTP "User-Agent" header name.
	HeaderUserAgent = "User-Agent"

	// HeaderXRequestID is the custom request ID header name.
	HeaderXRequestID = "X-Request-ID"

	// HeaderPrinterSession carries the print fleet session credential.
	HeaderPrinterSession = "X-Printer-Session"

	// HeaderSUMSToken carries the tool usage "orgKey:orgId" credential.
	HeaderSUMSToken = "X-Sums-Token"
)

// Query parameter names used by the SSO flow.
const (
	// QueryTicket is the CAS service ticket parameter.
	QueryTicket = "ticket"

	// QueryService is the CAS service (callback) parameter.
	QueryService = "service"
)

// Common media / content types used in requests and responses.
const (
	// ContentTypeJSON represents "application/json".
	ContentTypeJSON = "application/json"

	// ContentTypeFormURLEncoded represents
	// "application/x-www-form-urlencoded".
	ContentTypeFormURLEncoded = "application/x-www-form-urlencoded"

	// ContentTypeXML represents "application/xml".
	ContentTypeXML = "application/xml"
)
