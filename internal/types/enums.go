package types

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// SelectionType is the cardinality mode of an option group.
type SelectionType int

const (
	SelectionSingle SelectionType = iota
	SelectionMulti
)

const (
	SelectionSingleStr = "single"
	SelectionMultiStr  = "multi"
)

// ParseSelectionType accepts the wire names case-insensitively.
func ParseSelectionType(s string) (SelectionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case SelectionSingleStr:
		return SelectionSingle, nil
	case SelectionMultiStr, "multiple":
		return SelectionMulti, nil
	default:
		return SelectionSingle, fmt.Errorf("%w: selection_type %q", ErrInvalidEnum, s)
	}
}

func (t SelectionType) String() string {
	switch t {
	case SelectionSingle:
		return SelectionSingleStr
	case SelectionMulti:
		return SelectionMultiStr
	default:
		return "unknown"
	}
}

func (t SelectionType) Valid() bool {
	return t == SelectionSingle || t == SelectionMulti
}

func (t SelectionType) MarshalJSON() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: selection_type %d", ErrInvalidEnum, int(t))
	}
	return json.Marshal(t.String())
}

func (t *SelectionType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: selection_type: %v", ErrInvalidEnum, err)
	}
	parsed, err := ParseSelectionType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t SelectionType) MarshalYAML() (any, error) {
	return t.String(), nil
}

// Severity grades a violation for display. Whether a violation blocks is the
// backend's is_valid verdict, not its severity.
type Severity int

const (
	SeverityError Severity = iota
	SeverityCritical
	SeverityWarning
	SeverityInfo
)

const (
	SeverityCriticalStr = "critical"
	SeverityErrorStr    = "error"
	SeverityWarningStr  = "warning"
	SeverityInfoStr     = "info"
)

// ParseSeverity maps a wire severity. Empty input means error.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case SeverityErrorStr, "":
		return SeverityError, nil
	case SeverityCriticalStr:
		return SeverityCritical, nil
	case SeverityWarningStr:
		return SeverityWarning, nil
	case SeverityInfoStr:
		return SeverityInfo, nil
	default:
		return SeverityError, fmt.Errorf("%w: severity %q", ErrInvalidEnum, s)
	}
}

func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return SeverityCriticalStr
	case SeverityError:
		return SeverityErrorStr
	case SeverityWarning:
		return SeverityWarningStr
	case SeverityInfo:
		return SeverityInfoStr
	default:
		return "unknown"
	}
}

func (s Severity) Valid() bool {
	return s >= SeverityError && s <= SeverityInfo
}

func (s Severity) MarshalJSON() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: severity %d", ErrInvalidEnum, int(s))
	}
	return json.Marshal(s.String())
}

func (s *Severity) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: severity: %v", ErrInvalidEnum, err)
	}
	parsed, err := ParseSeverity(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s Severity) MarshalYAML() (any, error) {
	return s.String(), nil
}

// sortSelections orders wire selections by option id for deterministic payloads.
func sortSelections(items []Selection) {
	sort.Slice(items, func(i, j int) bool {
		return items[i].OptionID < items[j].OptionID
	})
}
