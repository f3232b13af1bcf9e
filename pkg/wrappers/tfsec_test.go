package wrappers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tfsecFixture = `{
  "results": [
    {
      "rule_id": "GCP002",
      "long_id": "google-storage-no-public-access",
      "description": "Storage bucket is exposed publicly",
      "severity": "CRITICAL",
      "resource": "google_storage_bucket_iam_member.public",
      "location": {
        "filename": "storage.tf",
        "start_line": 16,
        "end_line": 20
      }
    },
    {
      "rule_id": "google-storage-enable-ubla",
      "description": "Bucket has uniform bucket level access disabled",
      "severity": "MEDIUM",
      "resource": "google_storage_bucket.app_data",
      "location": {
        "filename": "storage.tf",
        "start_line": 1,
        "end_line": 14
      }
    }
  ]
}`

func TestTfsecParse(t *testing.T) {
	w := &TfsecWrapper{}
	findings, err := w.Parse([]byte(tfsecFixture))
	require.NoError(t, err)
	require.Len(t, findings, 2)

	// long_id wins when present.
	assert.Equal(t, "google-storage-no-public-access", findings[0].RuleID)
	assert.Equal(t, "CRITICAL", findings[0].Severity)
	assert.Equal(t, 16, findings[0].Line)
	assert.Equal(t, 20, findings[0].EndLine)

	assert.Equal(t, "google-storage-enable-ubla", findings[1].RuleID)
	assert.Equal(t, "google_storage_bucket.app_data", findings[1].Resource)
}

func TestTfsecParseNullResults(t *testing.T) {
	w := &TfsecWrapper{}
	findings, err := w.Parse([]byte(`{"results": null}`))
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestTfsecParseRejectsGarbage(t *testing.T) {
	w := &TfsecWrapper{}
	_, err := w.Parse([]byte("<html>rate limited</html>"))
	assert.Error(t, err)
	_, err = w.Parse(nil)
	assert.Error(t, err)
}
