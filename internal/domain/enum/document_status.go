package enum

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// DocumentStatus represents the lifecycle state of a fiscal document
type DocumentStatus int

const (
	DocumentStatusDraft             DocumentStatus = 0
	DocumentStatusSubmitted         DocumentStatus = 1
	DocumentStatusAccepted          DocumentStatus = 2
	DocumentStatusRejected          DocumentStatus = 3
	DocumentStatusFailedPermanently DocumentStatus = 4
)

func (s DocumentStatus) String() string {
	names := [...]string{"Draft", "Submitted", "Accepted", "Rejected", "FailedPermanently"}
	if int(s) < 0 || int(s) >= len(names) {
		return "Draft"
	}
	return names[s]
}

// ParseDocumentStatus converts a status name to its enum value
func ParseDocumentStatus(s string) (DocumentStatus, error) {
	switch s {
	case "Draft":
		return DocumentStatusDraft, nil
	case "Submitted":
		return DocumentStatusSubmitted, nil
	case "Accepted":
		return DocumentStatusAccepted, nil
	case "Rejected":
		return DocumentStatusRejected, nil
	case "FailedPermanently":
		return DocumentStatusFailedPermanently, nil
	default:
		return DocumentStatusDraft, fmt.Errorf("unknown document status %q", s)
	}
}

// IsTerminal reports whether no further submission activity is expected.
func (s DocumentStatus) IsTerminal() bool {
	return s == DocumentStatusAccepted || s == DocumentStatusFailedPermanently
}

func (s DocumentStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *DocumentStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		// Try unmarshaling as int
		var i int
		if err := json.Unmarshal(data, &i); err != nil {
			return err
		}
		*s = DocumentStatus(i)
		return nil
	}
	switch str {
	case "Draft":
		*s = DocumentStatusDraft
	case "Submitted":
		*s = DocumentStatusSubmitted
	case "Accepted":
		*s = DocumentStatusAccepted
	case "Rejected":
		*s = DocumentStatusRejected
	case "FailedPermanently":
		*s = DocumentStatusFailedPermanently
	}
	return nil
}

func (s DocumentStatus) Value() (driver.Value, error) {
	return int64(s), nil
}

func (s *DocumentStatus) Scan(value interface{}) error {
	if value == nil {
		*s = DocumentStatusDraft
		return nil
	}
	switch v := value.(type) {
	case int64:
		*s = DocumentStatus(v)
	case int:
		*s = DocumentStatus(v)
	}
	return nil
}
