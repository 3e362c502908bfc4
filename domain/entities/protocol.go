package entities

import "strings"

// Protocol is a static first-aid procedure for one emergency category
type Protocol struct {
	Key          string   `json:"key" yaml:"key"`
	Name         string   `json:"name" yaml:"name"`
	Steps        []string `json:"steps" yaml:"steps"`
	WarningSigns []string `json:"warning_signs" yaml:"warning_signs"`
}

// EmergencyTypeUnknown is recorded when classification fails or yields no label
const EmergencyTypeUnknown = "unknown"

// FriendlyLabel turns a classifier label such as "SEVERE_BLEEDING" into
// "severe bleeding".
func FriendlyLabel(label string) string {
	return strings.ToLower(strings.ReplaceAll(label, "_", " "))
}
