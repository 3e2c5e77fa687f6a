// Package responses holds student answers: harvesting them from a rendered
// activity, storing them and feeding them back as prefill.
package responses

import (
	"net/mail"
	"time"

	"github.com/volatiletech/null/v8"
)

// Response types, as stored next to every answer.
const (
	TypeText   = "text"
	TypePython = "python"
	TypeCpp    = "cpp"
	TypeOutput = "output"
	TypeStatus = "status"
)

type (
	Response struct {
		InstanceID int
		Key        string
		Type       string
		Value      string
		GroupID    null.Int    // question group the answer belongs to, if any
		AnsweredBy null.Int    // user ID
		UpdatedAt  time.Time
	}

	// AnswerRecord is the prefill view of a stored answer.
	AnswerRecord struct {
		Response string `json:"response"`
		Type     string `json:"type"`
	}

	// Prefill maps response keys to saved answers.
	Prefill map[string]AnswerRecord

	// Submission is a rendered group (or whole activity) posted back with its current values.
	Submission struct {
		InstanceID int
		GroupID    int // 0 submits the preamble / whole activity without locking a group
		UserID     int
		HTML       string
		ReceiptTo  []mail.Address // optional submission receipt recipients
	}

	// CodeChange is an update coming from a code cell.
	CodeChange struct {
		InstanceID    int    `json:"-"`
		UserID        int    `json:"-"`
		Key           string `json:"response_key" validate:"required,responsekey"`
		Value         string `json:"value"`
		Language      string `json:"language" validate:"omitempty,oneof=python cpp"`
		BroadcastOnly bool   `json:"broadcast_only"`
	}
)

// Get returns the saved response for key, or "".
func (p Prefill) Get(key string) string {
	if p == nil {
		return ""
	}
	return p[key].Response
}

func (p Prefill) Has(key string) bool {
	_, ok := p[key]
	return ok
}

func (r Response) Record() AnswerRecord {
	return AnswerRecord{Response: r.Value, Type: r.Type}
}
