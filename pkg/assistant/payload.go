// Package assistant talks to the remote AI service. Every failure is folded
// into a Reply so callers never need an error branch of their own.
package assistant

// TaskKind tells the service which kind of answer is expected.
type TaskKind string

const (
	TaskChat             TaskKind = "chat"
	TaskInterpretVolcano TaskKind = "interpret_volcano"
	TaskMetaboliteDetail TaskKind = "metabolite_detail"
	TaskFilterSummary    TaskKind = "filter_summary"
)

// Valid reports whether t is one of the known task kinds.
func (t TaskKind) Valid() bool {
	switch t {
	case TaskChat, TaskInterpretVolcano, TaskMetaboliteDetail, TaskFilterSummary:
		return true
	}
	return false
}

const (
	// UnavailableText is shown whenever the service could not be reached or
	// answered with something unusable. The cause is only logged.
	UnavailableText = "Sorry, the AI service is unavailable right now."
	// NoResponseText is used when a successful response carries no text.
	NoResponseText = "No response."
)

// RequestPayload is the JSON body sent to the service.
type RequestPayload struct {
	UserMessage string   `json:"user_message"`
	Task        TaskKind `json:"task"`
	Context     any      `json:"context"`
}

// Reply is the normalized outcome of a request.
type Reply struct {
	Reply string `json:"reply"`
	Error bool   `json:"error,omitempty"`
}

// Unavailable is the reply for every failure path.
func Unavailable() Reply {
	return Reply{Reply: UnavailableText, Error: true}
}
