package enum

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// TaskKind classifies entries on the operator reconciliation queue
type TaskKind int

const (
	TaskKindAmbiguousPayment TaskKind = 0
	TaskKindRejectedDocument TaskKind = 1
	TaskKindStuckSubmission  TaskKind = 2
	// TaskKindMissingDocument: the gateway says the money moved but no
	// fiscal document exists and none can be rebuilt automatically.
	TaskKindMissingDocument TaskKind = 3
)

func (k TaskKind) String() string {
	names := [...]string{"AmbiguousPayment", "RejectedDocument", "StuckSubmission", "MissingDocument"}
	if int(k) < 0 || int(k) >= len(names) {
		return "AmbiguousPayment"
	}
	return names[k]
}

// ParseTaskKind converts a kind name to its enum value
func ParseTaskKind(s string) (TaskKind, error) {
	switch s {
	case "AmbiguousPayment":
		return TaskKindAmbiguousPayment, nil
	case "RejectedDocument":
		return TaskKindRejectedDocument, nil
	case "StuckSubmission":
		return TaskKindStuckSubmission, nil
	case "MissingDocument":
		return TaskKindMissingDocument, nil
	default:
		return TaskKindAmbiguousPayment, fmt.Errorf("unknown task kind %q", s)
	}
}

func (k TaskKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *TaskKind) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		var i int
		if err := json.Unmarshal(data, &i); err != nil {
			return err
		}
		*k = TaskKind(i)
		return nil
	}
	switch str {
	case "AmbiguousPayment":
		*k = TaskKindAmbiguousPayment
	case "RejectedDocument":
		*k = TaskKindRejectedDocument
	case "StuckSubmission":
		*k = TaskKindStuckSubmission
	case "MissingDocument":
		*k = TaskKindMissingDocument
	}
	return nil
}

func (k TaskKind) Value() (driver.Value, error) {
	return int64(k), nil
}

func (k *TaskKind) Scan(value interface{}) error {
	if value == nil {
		*k = TaskKindAmbiguousPayment
		return nil
	}
	switch v := value.(type) {
	case int64:
		*k = TaskKind(v)
	case int:
		*k = TaskKind(v)
	}
	return nil
}

// TaskStatus represents whether a reconciliation task still needs attention
type TaskStatus int

const (
	TaskStatusOpen     TaskStatus = 0
	TaskStatusResolved TaskStatus = 1
)

func (s TaskStatus) String() string {
	names := [...]string{"Open", "Resolved"}
	if int(s) < 0 || int(s) >= len(names) {
		return "Open"
	}
	return names[s]
}

// ParseTaskStatus converts a status name to its enum value
func ParseTaskStatus(s string) (TaskStatus, error) {
	switch s {
	case "Open":
		return TaskStatusOpen, nil
	case "Resolved":
		return TaskStatusResolved, nil
	default:
		return TaskStatusOpen, fmt.Errorf("unknown task status %q", s)
	}
}

func (s TaskStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *TaskStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		var i int
		if err := json.Unmarshal(data, &i); err != nil {
			return err
		}
		*s = TaskStatus(i)
		return nil
	}
	switch str {
	case "Open":
		*s = TaskStatusOpen
	case "Resolved":
		*s = TaskStatusResolved
	}
	return nil
}

func (s TaskStatus) Value() (driver.Value, error) {
	return int64(s), nil
}

func (s *TaskStatus) Scan(value interface{}) error {
	if value == nil {
		*s = TaskStatusOpen
		return nil
	}
	switch v := value.(type) {
	case int64:
		*s = TaskStatus(v)
	case int:
		*s = TaskStatus(v)
	}
	return nil
}
