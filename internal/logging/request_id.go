package logging

import (
	"github.com/google/uuid"
)

// GenerateRequestID returns a random UUID used to correlate the log lines
// of one connection or one operation.
func GenerateRequestID() string {
	return uuid.NewString()
}
