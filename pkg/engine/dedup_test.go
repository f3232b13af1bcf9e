package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func finding(tool, resource string, cat Category, sev Severity, line, endLine int) CanonicalFinding {
	return CanonicalFinding{
		RuleID:     tool + "/rule",
		SourceTool: tool,
		Category:   cat,
		Severity:   sev,
		Resource:   resource,
		File:       "main.tf",
		Line:       line,
		EndLine:    endLine,
	}
}

func TestGroupMergesCorroboratingTools(t *testing.T) {
	// Two tools report the same missing-logging issue on the same resource
	// with overlapping spans: one group, corroboration 2.
	findings := []CanonicalFinding{
		finding("checkov", "google_storage_bucket.app_data", CategoryLogging, SeverityMedium, 1, 12),
		finding("tfsec", "google_storage_bucket.app_data", CategoryLogging, SeverityMedium, 4, 9),
	}
	groups := Group(findings)
	require.Len(t, groups, 1)
	assert.Equal(t, 2, groups[0].Corroboration)
	assert.Len(t, groups[0].Members, 2)
}

func TestGroupSeparatesByCategoryAndResource(t *testing.T) {
	findings := []CanonicalFinding{
		finding("checkov", "google_storage_bucket.app_data", CategoryLogging, SeverityMedium, 1, 12),
		finding("checkov", "google_storage_bucket.app_data", CategoryNetworkExposure, SeverityHigh, 1, 12),
		finding("checkov", "google_storage_bucket.other", CategoryLogging, SeverityMedium, 1, 12),
	}
	groups := Group(findings)
	assert.Len(t, groups, 3)
	for _, g := range groups {
		assert.Equal(t, 1, g.Corroboration)
	}
}

func TestGroupRequiresSpanOverlap(t *testing.T) {
	findings := []CanonicalFinding{
		finding("checkov", "aws_s3_bucket.logs", CategoryLogging, SeverityMedium, 1, 5),
		finding("tfsec", "aws_s3_bucket.logs", CategoryLogging, SeverityMedium, 20, 30),
	}
	groups := Group(findings)
	assert.Len(t, groups, 2)

	// Transitive overlap chains into one group.
	chained := []CanonicalFinding{
		finding("checkov", "aws_s3_bucket.logs", CategoryLogging, SeverityMedium, 1, 10),
		finding("tfsec", "aws_s3_bucket.logs", CategoryLogging, SeverityMedium, 8, 20),
		finding("trivy", "aws_s3_bucket.logs", CategoryLogging, SeverityMedium, 18, 25),
	}
	groups = Group(chained)
	require.Len(t, groups, 1)
	assert.Equal(t, 3, groups[0].Corroboration)
}

func TestGroupTemplateLevelIgnoresSpans(t *testing.T) {
	findings := []CanonicalFinding{
		finding("checkov", TemplateLevel, CategoryNetworkExposure, SeverityMedium, 0, 0),
		finding("tfsec", TemplateLevel, CategoryNetworkExposure, SeverityMedium, 99, 120),
	}
	groups := Group(findings)
	require.Len(t, groups, 1)
	assert.Equal(t, 2, groups[0].Corroboration)
}

func TestRepresentativeSelection(t *testing.T) {
	// Highest severity wins.
	findings := []CanonicalFinding{
		finding("tfsec", "a.b", CategoryLogging, SeverityMedium, 1, 10),
		finding("checkov", "a.b", CategoryLogging, SeverityHigh, 2, 8),
	}
	groups := Group(findings)
	require.Len(t, groups, 1)
	assert.Equal(t, "checkov", groups[0].Representative.SourceTool)
	assert.Equal(t, SeverityHigh, groups[0].Severity())

	// Severity tie breaks on the lexicographically earlier tool name.
	tied := []CanonicalFinding{
		finding("tfsec", "a.b", CategoryLogging, SeverityHigh, 1, 10),
		finding("checkov", "a.b", CategoryLogging, SeverityHigh, 2, 8),
	}
	groups = Group(tied)
	require.Len(t, groups, 1)
	assert.Equal(t, "checkov", groups[0].Representative.SourceTool)
}

func TestGroupOrderIndependent(t *testing.T) {
	a := finding("checkov", "a.b", CategoryLogging, SeverityMedium, 1, 10)
	b := finding("tfsec", "a.b", CategoryLogging, SeverityHigh, 5, 9)
	c := finding("trivy", "c.d", CategoryNetworkExposure, SeverityLow, 3, 3)

	forward := Group([]CanonicalFinding{a, b, c})
	reversed := Group([]CanonicalFinding{c, b, a})
	assert.Equal(t, forward, reversed)
}

func TestGroupIdempotent(t *testing.T) {
	findings := []CanonicalFinding{
		finding("checkov", "a.b", CategoryLogging, SeverityMedium, 1, 10),
		finding("tfsec", "a.b", CategoryLogging, SeverityHigh, 5, 9),
		finding("checkov", TemplateLevel, CategorySecrets, SeverityCritical, 0, 0),
		finding("trivy", "c.d", CategoryNetworkExposure, SeverityLow, 3, 3),
	}
	once := Group(findings)
	again := Group(Representatives(once))
	require.Len(t, again, len(once))
	for i := range once {
		assert.Equal(t, once[i].Resource(), again[i].Resource())
		assert.Equal(t, once[i].Category(), again[i].Category())
		assert.Equal(t, once[i].Representative, again[i].Representative)
	}
}
