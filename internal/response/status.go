package response

import "strconv"

// StatusCode represents the HTTP status codes this server can produce
type StatusCode int

const (
	StatusOK                  StatusCode = 200
	StatusBadRequest          StatusCode = 400
	StatusForbidden           StatusCode = 403
	StatusNotFound            StatusCode = 404
	StatusInternalServerError StatusCode = 500
)

// statusText maps status codes to reason phrases
var statusText = map[StatusCode]string{
	StatusOK:                  "OK",
	StatusBadRequest:          "Bad Request",
	StatusForbidden:           "Forbidden",
	StatusNotFound:            "Not Found",
	StatusInternalServerError: "Internal Server Error",
}

// errorBodies are the fixed HTML pages sent with error responses
var errorBodies = map[StatusCode]string{
	StatusBadRequest: "<html><body>\n" +
		"<h2>Malformed Request</h2>\n" +
		"Your browser sent a request I could not understand.\n" +
		"</body></html>\n",
	StatusForbidden: "<html><body>\n" +
		"<h2>Permission Denied</h2>\n" +
		"You asked for a document you are not permitted to see. " +
		"It sucks to be you.\n" +
		"</body></html>\n",
	StatusNotFound: "<html><body>\n" +
		"<h2>Document not found</h2>\n" +
		"You asked for a document that doesn't exist. That is so sad.\n" +
		"</body></html>\n",
	StatusInternalServerError: "<html><body>\n" +
		"<h2>Oops. That Didn't work</h2>\n" +
		"I had some sort of problem dealing with your request. " +
		"Sorry, I'm lame.\n" +
		"</body></html>\n",
}

// StatusText returns the reason phrase for a status code, or "" if unknown
func StatusText(code StatusCode) string {
	return statusText[code]
}

// ErrorBody returns a fresh copy of the error page for code. Codes without a
// page get an empty body.
func ErrorBody(code StatusCode) []byte {
	return []byte(errorBodies[code])
}

// statusLine formats the first response line. Codes without a reason phrase
// are reported as a 500.
func statusLine(code StatusCode) string {
	text, ok := statusText[code]
	if !ok {
		code = StatusInternalServerError
		text = statusText[code]
	}
	return "HTTP/1.1 " + strconv.Itoa(int(code)) + " " + text + "\r\n"
}

// IsSuccess returns true for 2xx status codes
func (code StatusCode) IsSuccess() bool {
	return code >= 200 && code < 300
}

// IsClientError returns true for 4xx status codes
func (code StatusCode) IsClientError() bool {
	return code >= 400 && code < 500
}

// IsServerError returns true for 5xx status codes
func (code StatusCode) IsServerError() bool {
	return code >= 500 && code < 600
}
