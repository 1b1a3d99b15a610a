package control

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_ReftimeAndOffset(t *testing.T) {
	values, err := Extract("reftime=0xe2fc1a2b.00000000, offset=1.234", "reftime", "offset")

	require.NoError(t, err)
	assert.Equal(t, "0xe2fc1a2b.00000000", values["reftime"])
	assert.Equal(t, "1.234", values["offset"])
}

func TestExtract_SeparatorVariants(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"no_space", "reftime=0xe2fc1a2b.00000000,offset=1.234"},
		{"single_space", "reftime=0xe2fc1a2b.00000000, offset=1.234"},
		{"reversed_order", "offset=1.234, reftime=0xe2fc1a2b.00000000"},
		{"crlf_wrapped", "reftime=0xe2fc1a2b.00000000,\r\noffset=1.234\r\n"},
		{"nul_padded", "reftime=0xe2fc1a2b.00000000, offset=1.234\x00\x00"},
		{"spaces_around_equals", "reftime = 0xe2fc1a2b.00000000 , offset = 1.234"},
		{"extra_variables", "stratum=2, reftime=0xe2fc1a2b.00000000, offset=1.234, sys_jitter=0.512"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, err := Extract(tt.text, "reftime", "offset")

			require.NoError(t, err)
			assert.Equal(t, "0xe2fc1a2b.00000000", values["reftime"])
			assert.Equal(t, "1.234", values["offset"])
		})
	}
}

func TestExtract_MissingField(t *testing.T) {
	values, err := Extract("reftime=0xe2fc1a2b.00000000, stratum=2", "reftime", "offset")

	assert.Nil(t, values)
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "offset", parseErr.Field)
}

func TestExtract_Garbage(t *testing.T) {
	tests := []string{
		"garbage text",
		"",
		"\x00\x00\x00",
		"=5",
		"some junk=1",
		`version="ntpd 4.2.8, offset=1`,
	}

	for _, text := range tests {
		t.Run(text, func(t *testing.T) {
			values, err := Extract(text, "reftime", "offset")

			assert.Nil(t, values)
			var parseErr *ParseError
			assert.ErrorAs(t, err, &parseErr)
		})
	}
}

func TestExtract_FirstOccurrenceWins(t *testing.T) {
	values, err := Extract("offset=1.0, offset=2.0", "offset")

	require.NoError(t, err)
	assert.Equal(t, "1.0", values["offset"])
}

func TestParseVariables_QuotedValues(t *testing.T) {
	text := `version="ntpd 4.2.8p15@1.3728-o, built Jun 1 2021", processor="x86_64", leap=00, tc=10`

	vars, err := ParseVariables(text)

	require.NoError(t, err)
	require.Len(t, vars, 4)
	assert.Equal(t, Variable{Name: "version", Value: "ntpd 4.2.8p15@1.3728-o, built Jun 1 2021"}, vars[0])
	assert.Equal(t, Variable{Name: "processor", Value: "x86_64"}, vars[1])
	assert.Equal(t, Variable{Name: "leap", Value: "00"}, vars[2])
	assert.Equal(t, Variable{Name: "tc", Value: "10"}, vars[3])
}

func TestParseVariables_ValueWithEquals(t *testing.T) {
	vars, err := ParseVariables(`filter="a=b", offset=-0.25`)

	require.NoError(t, err)
	require.Len(t, vars, 2)
	assert.Equal(t, "a=b", vars[0].Value)
	assert.Equal(t, "-0.25", vars[1].Value)
}

func TestParseVariables_EmptyValue(t *testing.T) {
	vars, err := ParseVariables("refid=, offset=0.000")

	require.NoError(t, err)
	require.Len(t, vars, 2)
	assert.Equal(t, "", vars[0].Value)
}

func TestParseVariables_TrailingSeparator(t *testing.T) {
	vars, err := ParseVariables("offset=0.125,\r\n")

	require.NoError(t, err)
	require.Len(t, vars, 1)
	assert.Equal(t, "offset", vars[0].Name)
}

func TestParseError_Message(t *testing.T) {
	_, err := Extract("garbage text", "offset")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "garbage text")
}
