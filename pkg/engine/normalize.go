package engine

import (
	"fmt"
	"strings"
)

// ToolMapping is the fixed, explicit translation table for one tool. Severity
// resolution is deterministic: rule-id overrides first, then prefix rules,
// then the native-severity table, then the tool's declared default (flagged
// as a mapping gap). Nothing is inferred from message text.
type ToolMapping struct {
	Tool            string
	SeverityTable   map[string]Severity // native severity string (upper case) -> canonical
	RuleSeverity    map[string]Severity // exact rule id -> canonical
	PrefixSeverity  []PrefixSeverity    // ordered rule-id prefix rules
	DefaultSeverity Severity            // fallback for unknown vocabulary
	Confidence      string              // tool-level confidence label
}

// PrefixSeverity maps every rule id with a given prefix to a severity.
type PrefixSeverity struct {
	Prefix   string
	Severity Severity
}

// SeverityFor resolves a raw finding's severity. The second return is false
// when the tool default had to be used, i.e. a mapping gap.
func (m ToolMapping) SeverityFor(raw RawFinding) (Severity, bool) {
	if sev, ok := m.RuleSeverity[raw.RuleID]; ok {
		return sev, true
	}
	for _, rule := range m.PrefixSeverity {
		if strings.HasPrefix(raw.RuleID, rule.Prefix) {
			return rule.Severity, true
		}
	}
	if raw.Severity != "" {
		if sev, ok := m.SeverityTable[strings.ToUpper(raw.Severity)]; ok {
			return sev, true
		}
	}
	return m.DefaultSeverity, false
}

// Normalizer maps tool-native findings into the canonical schema. It is a
// pure lookup structure: no I/O, deterministic for identical inputs.
type Normalizer struct {
	mappings   map[string]ToolMapping
	categories map[string]Category // rule id -> category, shared across tools
}

// NewNormalizer builds a normalizer from explicit tables.
func NewNormalizer(mappings []ToolMapping, categories map[string]Category) *Normalizer {
	byTool := make(map[string]ToolMapping, len(mappings))
	for _, m := range mappings {
		byTool[m.Tool] = m
	}
	return &Normalizer{mappings: byTool, categories: categories}
}

// DefaultNormalizer carries the built-in tables for the supported scanners.
func DefaultNormalizer() *Normalizer {
	return NewNormalizer(DefaultMappings(), DefaultCategoryTable())
}

// Normalize converts one raw finding from sourceTool into the canonical
// schema. Unknown severities fall back to the tool default and unknown rule
// ids to "uncategorized"; both are flagged via MappingGap, never dropped.
func (n *Normalizer) Normalize(raw RawFinding, sourceTool string) (CanonicalFinding, error) {
	mapping, ok := n.mappings[sourceTool]
	if !ok {
		return CanonicalFinding{}, fmt.Errorf("no mapping table for tool %q", sourceTool)
	}

	var gaps []string
	severity, mapped := mapping.SeverityFor(raw)
	if !mapped {
		gaps = append(gaps, fmt.Sprintf("severity %q unknown for %s, using tool default %s", raw.Severity, sourceTool, severity))
	}

	category, ok := n.categories[raw.RuleID]
	if !ok {
		category = CategoryUncategorized
		if raw.RuleID != "" {
			gaps = append(gaps, fmt.Sprintf("rule %s not in category table", raw.RuleID))
		}
	}

	resource := canonicalResource(raw.Resource)

	return CanonicalFinding{
		RuleID:     sourceTool + "/" + raw.RuleID,
		SourceTool: sourceTool,
		Category:   category,
		Severity:   severity,
		Resource:   resource,
		File:       strings.TrimPrefix(raw.File, "/"),
		Line:       raw.Line,
		EndLine:    raw.EndLine,
		Message:    raw.Message,
		Confidence: mapping.Confidence,
		MappingGap: strings.Join(gaps, "; "),
	}, nil
}

// NormalizeAll normalizes every raw finding from one tool, in input order.
func (n *Normalizer) NormalizeAll(raws []RawFinding, sourceTool string) ([]CanonicalFinding, error) {
	findings := make([]CanonicalFinding, 0, len(raws))
	for _, raw := range raws {
		f, err := n.Normalize(raw, sourceTool)
		if err != nil {
			return nil, err
		}
		findings = append(findings, f)
	}
	return findings, nil
}

// canonicalResource reduces the tools' different addressing conventions to
// one logical name (type.name). Checkov and tfsec already report
// "google_storage_bucket.app_data"; trivy may report a bare name or nothing.
// Unresolvable references fall back to template-level scope.
func canonicalResource(native string) string {
	native = strings.TrimSpace(native)
	if native == "" {
		return TemplateLevel
	}
	// Strip module paths: "module.storage.google_storage_bucket.app_data"
	// addresses the same logical resource as its last two labels.
	parts := strings.Split(native, ".")
	if len(parts) > 2 {
		parts = parts[len(parts)-2:]
	}
	return strings.Join(parts, ".")
}

// DefaultMappings returns the built-in per-tool severity tables.
func DefaultMappings() []ToolMapping {
	return []ToolMapping{
		{
			// Checkov emits no severity field in its open-source JSON output,
			// so severity is keyed off the check id the same way the gate
			// always categorized it: a short list of hard-critical GCP checks,
			// then provider-prefix buckets.
			Tool: "checkov",
			RuleSeverity: map[string]Severity{
				"CKV_GCP_62": SeverityCritical, // bucket access logging / public exposure set
				"CKV_GCP_6":  SeverityCritical,
				"CKV_GCP_14": SeverityCritical,
			},
			PrefixSeverity: []PrefixSeverity{
				{Prefix: "CKV2_", Severity: SeverityMedium},
				{Prefix: "CKV_GCP_", Severity: SeverityHigh},
				{Prefix: "CKV_AWS_", Severity: SeverityHigh},
				{Prefix: "CKV_", Severity: SeverityLow},
			},
			DefaultSeverity: SeverityMedium,
			Confidence:      "high",
		},
		{
			Tool: "tfsec",
			SeverityTable: map[string]Severity{
				"CRITICAL": SeverityCritical,
				"HIGH":     SeverityHigh,
				"MEDIUM":   SeverityMedium,
				"LOW":      SeverityLow,
				"INFO":     SeverityInfo,
			},
			DefaultSeverity: SeverityMedium,
			Confidence:      "high",
		},
		{
			Tool: "trivy",
			SeverityTable: map[string]Severity{
				"CRITICAL": SeverityCritical,
				"HIGH":     SeverityHigh,
				"MEDIUM":   SeverityMedium,
				"LOW":      SeverityLow,
				"UNKNOWN":  SeverityMedium,
			},
			DefaultSeverity: SeverityMedium,
			Confidence:      "medium",
		},
		{
			// terraform validate reports diagnostics, not policy findings;
			// an invalid template blocks any trustworthy scan, so errors map
			// high and warnings low.
			Tool: "terraform-validate",
			SeverityTable: map[string]Severity{
				"ERROR":   SeverityHigh,
				"WARNING": SeverityLow,
			},
			DefaultSeverity: SeverityHigh,
			Confidence:      "high",
		},
	}
}

// DefaultCategoryTable is the shared rule-id -> category lookup table.
func DefaultCategoryTable() map[string]Category {
	return map[string]Category{
		// Checkov (GCP/AWS checks seen in the template corpus).
		"CKV_GCP_62":  CategoryLogging,           // bucket access logging
		"CKV_GCP_6":   CategoryEncryptionInTransit, // SQL SSL
		"CKV_GCP_14":  CategoryLogging,
		"CKV_GCP_28":  CategoryNetworkExposure, // public bucket ACL
		"CKV_GCP_29":  CategoryIdentityAndAccess, // uniform bucket-level access
		"CKV_GCP_78":  CategoryLifecycle,       // bucket versioning
		"CKV_GCP_114": CategoryNetworkExposure, // public access prevention
		"CKV_GCP_32":  CategoryIdentityAndAccess, // block project-wide SSH keys
		"CKV_GCP_38":  CategoryEncryptionAtRest, // boot disk CSEK
		"CKV_GCP_39":  CategoryIdentityAndAccess, // shielded VM
		"CKV_GCP_40":  CategoryNetworkExposure, // public IP on instance
		"CKV_GCP_2":   CategoryNetworkExposure, // firewall ingress 0.0.0.0/0 ssh
		"CKV_GCP_3":   CategoryNetworkExposure, // firewall ingress rdp
		"CKV_GCP_26":  CategoryLogging,         // VPC flow logs
		"CKV_GCP_74":  CategoryNetworkExposure, // private google access
		"CKV_GCP_11":  CategoryNetworkExposure, // SQL public ip
		"CKV_GCP_60":  CategoryNetworkExposure, // SQL no public networks
		"CKV_GCP_79":  CategoryLifecycle,       // SQL latest version
		"CKV_GCP_41":  CategoryIdentityAndAccess, // default service account
		"CKV_GCP_42":  CategoryIdentityAndAccess, // SA user role binding
		"CKV_GCP_49":  CategoryIdentityAndAccess, // IAM primitive roles
		"CKV_AWS_18":  CategoryLogging,         // S3 access logging
		"CKV_AWS_19":  CategoryEncryptionAtRest, // S3 SSE
		"CKV_AWS_20":  CategoryNetworkExposure, // S3 public read
		"CKV_AWS_21":  CategoryLifecycle,       // S3 versioning
		"CKV_AWS_40":  CategoryIdentityAndAccess, // IAM user policy attach
		"CKV_SECRET_6": CategorySecrets,        // base64 high-entropy string
		"CKV_SECRET_2": CategorySecrets,        // AWS access key
		"CKV2_GCP_5":   CategoryLogging,        // audit logging config
		// tfsec.
		"google-storage-no-public-access":         CategoryNetworkExposure,
		"google-storage-bucket-encryption-customer-key": CategoryEncryptionAtRest,
		"google-storage-enable-ubla":              CategoryIdentityAndAccess,
		"google-compute-no-public-ip":             CategoryNetworkExposure,
		"google-compute-no-public-ingress":        CategoryNetworkExposure,
		"google-compute-enable-shielded-vm-im":    CategoryIdentityAndAccess,
		"google-compute-no-project-wide-ssh-keys": CategoryIdentityAndAccess,
		"google-compute-vm-disk-encryption-customer-key": CategoryEncryptionAtRest,
		"google-sql-encrypt-in-transit-data":      CategoryEncryptionInTransit,
		"google-sql-no-public-access":             CategoryNetworkExposure,
		"google-sql-enable-pg-log-connections":    CategoryLogging,
		"google-iam-no-privileged-service-accounts": CategoryIdentityAndAccess,
		"google-iam-no-project-level-service-account-impersonation": CategoryIdentityAndAccess,
		"aws-s3-enable-bucket-logging":            CategoryLogging,
		"aws-s3-enable-bucket-encryption":         CategoryEncryptionAtRest,
		"aws-s3-no-public-buckets":                CategoryNetworkExposure,
		"aws-s3-enable-versioning":                CategoryLifecycle,
		// Trivy misconfiguration ids (AVD).
		"AVD-GCP-0001": CategoryNetworkExposure,
		"AVD-GCP-0051": CategoryNetworkExposure,
		"AVD-GCP-0066": CategoryEncryptionAtRest,
		"AVD-GCP-0077": CategoryLogging,
		"AVD-AWS-0086": CategoryNetworkExposure,
		"AVD-AWS-0088": CategoryEncryptionAtRest,
		"AVD-AWS-0089": CategoryLogging,
		"AVD-AWS-0090": CategoryLifecycle,
		"AVD-GEN-0002": CategorySecrets,
		// terraform validate diagnostics carry no rule id; the adapter tags
		// them with a synthetic one.
		"TF_VALIDATE": CategoryLifecycle,
	}
}
