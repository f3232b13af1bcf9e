package engine

import "fmt"

// Severity is the canonical five-level scale every tool-native severity
// vocabulary is mapped into.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityInfo     Severity = "INFO"
)

// Severities lists the canonical levels from most to least severe.
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo}

var severityRanks = map[Severity]int{
	SeverityCritical: 5,
	SeverityHigh:     4,
	SeverityMedium:   3,
	SeverityLow:      2,
	SeverityInfo:     1,
}

// Rank returns the ordering of a severity; higher is more severe.
// An unknown value ranks 0, below INFO.
func (s Severity) Rank() int {
	return severityRanks[s]
}

// Valid reports whether s is one of the five canonical levels.
func (s Severity) Valid() bool {
	return s.Rank() > 0
}

// Category is the fixed finding taxonomy. Rule ids that do not appear in the
// category lookup table land in CategoryUncategorized instead of erroring.
type Category string

const (
	CategoryNetworkExposure     Category = "network-exposure"
	CategoryEncryptionAtRest    Category = "encryption-at-rest"
	CategoryEncryptionInTransit Category = "encryption-in-transit"
	CategoryIdentityAndAccess   Category = "identity-and-access"
	CategoryLogging             Category = "logging-and-monitoring"
	CategorySecrets             Category = "secrets-management"
	CategoryLifecycle           Category = "lifecycle-and-resilience"
	CategoryUncategorized       Category = "uncategorized"
)

// Categories lists the taxonomy in its stable report order.
var Categories = []Category{
	CategoryNetworkExposure,
	CategoryEncryptionAtRest,
	CategoryEncryptionInTransit,
	CategoryIdentityAndAccess,
	CategoryLogging,
	CategorySecrets,
	CategoryLifecycle,
	CategoryUncategorized,
}

// Valid reports whether c belongs to the taxonomy.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// TemplateLevel is the resource identifier for findings that apply to a whole
// template rather than a single resource (e.g. a missing deny-all rule), and
// the fallback when a tool's resource reference cannot be resolved.
const TemplateLevel = "template-level"

// RawFinding is a single issue exactly as one tool reported it. It only lives
// between adapter output and normalization.
type RawFinding struct {
	RuleID   string `json:"rule_id"`
	Message  string `json:"message"`
	File     string `json:"file"`
	Line     int    `json:"line"`
	EndLine  int    `json:"end_line"`
	Severity string `json:"severity"` // tool-native vocabulary, may be empty
	Resource string `json:"resource"` // tool-native addressing, may be empty
}

// CanonicalFinding is the normalized record shared by every downstream stage.
type CanonicalFinding struct {
	RuleID     string   `json:"rule_id"` // tool-qualified, e.g. "checkov/CKV_GCP_62"
	SourceTool string   `json:"source_tool"`
	Category   Category `json:"category"`
	Severity   Severity `json:"severity"`
	Resource   string   `json:"resource"` // logical address or TemplateLevel
	File       string   `json:"file,omitempty"`
	Line       int      `json:"line,omitempty"`
	EndLine    int      `json:"end_line,omitempty"`
	Message    string   `json:"message"`
	Confidence string   `json:"confidence"`
	// MappingGap names the table the raw finding fell through (severity or
	// category), so the report can surface it instead of dropping it.
	MappingGap string `json:"mapping_gap,omitempty"`
}

// TemplateWide reports whether the finding applies to the whole template.
func (f CanonicalFinding) TemplateWide() bool {
	return f.Resource == TemplateLevel
}

// Span returns the finding's line span, normalizing a missing end line.
func (f CanonicalFinding) Span() (start, end int) {
	start, end = f.Line, f.EndLine
	if end < start {
		end = start
	}
	return start, end
}

func (f CanonicalFinding) String() string {
	return fmt.Sprintf("[%s] %s %s (%s) at %s", f.Severity, f.RuleID, f.Resource, f.Category, f.File)
}
