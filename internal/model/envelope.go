package model

// Envelope is the uniform JSON wrapper returned by every endpoint.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Ok builds a success envelope. A nil slice is never emitted as null.
func Ok[T any](message string, data []T) Envelope {
	if data == nil {
		data = []T{}
	}
	return Envelope{Success: true, Message: message, Data: data}
}

// Fail builds a failure envelope. Detail is omitted when empty.
func Fail(message, detail string) Envelope {
	return Envelope{Success: false, Message: message, Error: detail}
}
