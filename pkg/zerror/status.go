package zerror

// Status classifies an error independently of the transport. The HTTP layer
// maps it to a response status code.
type Status uint8

const (
	StatusUnknown Status = iota
	StatusValidationFailed
	StatusNotFound
	StatusInternalServerError
	StatusServiceUnavailable
)

var statusNames = [...]string{
	StatusUnknown:             "UNKNOWN",
	StatusValidationFailed:    "VALIDATION_FAILED",
	StatusNotFound:            "NOT_FOUND",
	StatusInternalServerError: "INTERNAL_SERVER_ERROR",
	StatusServiceUnavailable:  "SERVICE_UNAVAILABLE",
}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return statusNames[StatusUnknown]
}
