package contact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/macmilm-mfc/csv-contact-manager-agent/core/config"
)

func testColumns() coreconfig.CSVConfig {
	return coreconfig.CSVConfig{
		NameColumn:      "name",
		EmailColumn:     "email",
		LinkedInColumn:  "What is your LinkedIn profile?",
		FirstNameColumn: "first_name",
		LastNameColumn:  "last_name",
	}
}

func TestParseValidRows(t *testing.T) {
	raw := []byte(`name,email,What is your LinkedIn profile?,first_name,last_name
Ada Lovelace,ada@example.com,https://linkedin.com/in/ada,Ada,Lovelace
Alan Turing,alan@example.com,linkedin.com/in/turing,,
`)

	res, err := NewParser(testColumns()).Parse(raw)
	require.NoError(t, err)

	require.Len(t, res.Records, 2)
	assert.Equal(t, 0, res.Skipped)
	assert.Equal(t, 2, res.Total)

	assert.Equal(t, "Ada Lovelace", res.Records[0].Name)
	assert.Equal(t, "ada@example.com", res.Records[0].Email)
	assert.Equal(t, "https://linkedin.com/in/ada", res.Records[0].LinkedInURL)

	// Scheme is prepended during cleanup.
	assert.Equal(t, "https://linkedin.com/in/turing", res.Records[1].LinkedInURL)
}

func TestParseMissingEmailColumn(t *testing.T) {
	raw := []byte(`name,What is your LinkedIn profile?
Ada Lovelace,https://linkedin.com/in/ada
`)

	res, err := NewParser(testColumns()).Parse(raw)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, IsFormatError(err))
}

func TestParseEmptyFile(t *testing.T) {
	_, err := NewParser(testColumns()).Parse(nil)
	require.Error(t, err)
	assert.True(t, IsFormatError(err))
}

func TestParseInvalidEmailSkipped(t *testing.T) {
	raw := []byte(`name,email,What is your LinkedIn profile?
Ada Lovelace,not-an-email,https://linkedin.com/in/ada
Alan Turing,alan@example.com,https://linkedin.com/in/turing
`)

	res, err := NewParser(testColumns()).Parse(raw)
	require.NoError(t, err)

	require.Len(t, res.Records, 1)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, "Alan Turing", res.Records[0].Name)
}

func TestParseAccounting(t *testing.T) {
	raw := []byte(`name,email,What is your LinkedIn profile?
Ada Lovelace,ada@example.com,https://linkedin.com/in/ada
,missing@example.com,https://linkedin.com/in/missing
Grace Hopper,grace@example.com,
Alan Turing,alan@example.com,https://example.com/not-linkedin
`)

	res, err := NewParser(testColumns()).Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, 4, res.Total)
	assert.Equal(t, len(res.Records)+res.Skipped, res.Total)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "Ada Lovelace", res.Records[0].Name)
}

func TestParseTrimsWhitespace(t *testing.T) {
	raw := []byte(`name,email,What is your LinkedIn profile?
  Ada Lovelace  , ada@example.com , https://linkedin.com/in/ada
`)

	res, err := NewParser(testColumns()).Parse(raw)
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "Ada Lovelace", res.Records[0].Name)
	assert.Equal(t, "ada@example.com", res.Records[0].Email)
}

func TestCleanLinkedInURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"https://linkedin.com/in/ada?utm=abc", "https://linkedin.com/in/ada"},
		{"linkedin.com/in/ada", "https://linkedin.com/in/ada"},
		{"  linkedin.com/in/ada  ", "https://linkedin.com/in/ada"},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CleanLinkedInURL(tc.in), "input %q", tc.in)
	}
}

func TestRecordNameFallbacks(t *testing.T) {
	r := Record{Name: "Ada King Lovelace"}
	assert.Equal(t, "Ada", r.GivenName())
	assert.Equal(t, "King Lovelace", r.FamilyName())

	r = Record{Name: "Ada", FirstName: "Augusta", LastName: "King"}
	assert.Equal(t, "Augusta", r.GivenName())
	assert.Equal(t, "King", r.FamilyName())

	r = Record{Name: "Ada"}
	assert.Equal(t, "Ada", r.GivenName())
	assert.Equal(t, "", r.FamilyName())
}
