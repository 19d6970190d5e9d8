package model

// Envelope is the uniform response body for every API endpoint.
//
//	{"status": "success", "message": "...", "data": {...}}
//	{"status": "error", "message": "..."}
type Envelope struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Envelope status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Success builds a success envelope.
func Success(message string, data interface{}) Envelope {
	return Envelope{Status: StatusSuccess, Message: message, Data: data}
}

// Failure builds an error envelope. Error envelopes never carry data.
func Failure(message string) Envelope {
	return Envelope{Status: StatusError, Message: message}
}

// ListMeta carries pagination information for collection listings.
type ListMeta struct {
	Count  int `json:"count"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}
