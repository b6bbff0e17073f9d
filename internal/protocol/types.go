// Package protocol defines the line-delimited JSON records exchanged with the
// parent process over stdin and stdout.
package protocol

import (
	"encoding/json"
	"math"
)

// Status enumerates the values of the response "status" field.
type Status string

const (
	StatusStarting  Status = "starting"
	StatusLoading   Status = "loading"
	StatusWarning   Status = "warning"
	StatusReady     Status = "ready"
	StatusListening Status = "listening"
	StatusPong      Status = "pong"
	StatusSuccess   Status = "success"
	StatusError     Status = "error"
	StatusShutdown  Status = "shutdown"
	StatusStopped   Status = "stopped"
)

// Commands recognised in the request "command" field. An absent command means
// transcribe.
const (
	CommandPing     = "ping"
	CommandShutdown = "shutdown"
)

// Request is a single decoded input line.
type Request struct {
	Command string `json:"command,omitempty"`
	PCMPath string `json:"pcm_path,omitempty"`
}

// DecodeRequest parses one input line. Only a line that is not a JSON object
// (or null) is an error. A known field holding a non-string value is treated
// as absent, so a ping still pongs regardless of its other fields.
func DecodeRequest(raw []byte) (Request, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Request{}, err
	}
	return Request{
		Command: stringField(fields, "command"),
		PCMPath: stringField(fields, "pcm_path"),
	}, nil
}

func stringField(fields map[string]json.RawMessage, key string) string {
	var s string
	if err := json.Unmarshal(fields[key], &s); err != nil {
		return ""
	}
	return s
}

// Response is a single output line. Only Status is always present.
type Response struct {
	Status     Status   `json:"status"`
	Message    string   `json:"message,omitempty"`
	Text       *string  `json:"text,omitempty"`
	Language   string   `json:"language,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
	Traceback  string   `json:"traceback,omitempty"`
}

// Notice builds a status-only response such as the startup announcements.
func Notice(status Status, message string) Response {
	return Response{Status: status, Message: message}
}

// Failure builds an error response with an optional diagnostic detail.
func Failure(message, detail string) Response {
	return Response{Status: StatusError, Message: message, Traceback: detail}
}

// Success builds a transcription result. Confidence is dropped when it cannot
// be represented in JSON.
func Success(text, language string, confidence *float64) Response {
	resp := Response{Status: StatusSuccess, Text: &text, Language: language}
	if confidence != nil && !math.IsNaN(*confidence) && !math.IsInf(*confidence, 0) {
		value := *confidence
		resp.Confidence = &value
	}
	return resp
}

// TextValue returns the transcribed text or an empty string.
func (r Response) TextValue() string {
	if r.Text == nil {
		return ""
	}
	return *r.Text
}
