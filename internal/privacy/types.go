package privacy

import "regexp"

// Entity types reported in findings.
const (
	EntityPerson = "person"
	EntityPhone  = "phone"
	EntityEmail  = "email"
)

// Redaction tokens substituted for non-name PII.
const (
	PhoneToken = "[PHONE]"
	EmailToken = "[EMAIL]"
)

// AliasPrefix starts every participant alias (USER_1, USER_2, ...).
const AliasPrefix = "USER_"

// DetectionRule represents a single PII redaction rule
type DetectionRule struct {
	Name        string
	Pattern     *regexp.Regexp
	Replacement string
	Enabled     bool
}

// Finding counts what was masked for one entity type. It never carries
// the original values.
type Finding struct {
	EntityType string `json:"entityType"`
	Masked     string `json:"masked"`
	Count      int    `json:"count"`
}

// Alias is one registry entry.
type Alias struct {
	Original string `json:"original"`
	Alias    string `json:"alias"`
}

// Result is the output of one anonymization run.
type Result struct {
	Anonymized string            `json:"anonymized"`
	Mapping    map[string]string `json:"mapping"`
	Findings   []Finding         `json:"findings,omitempty"`
}
