package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"marker alone", "No major issues found", Reassurance},
		{"marker inside answer", "- Risks: No major issues found in section 2.\n- Terms: fair", Reassurance},
		{"plain answer", "- Risk: uncapped liability", "- Risk: uncapped liability"},
		{"empty", "", ""},
		{"different case", "no major issues found", "no major issues found"},
		{"error sentinel passes through", "Error: No text found in PDF.", "Error: No text found in PDF."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.in))
			assert.Equal(t, tt.want == Reassurance, Reassured(tt.in))
		})
	}
}

func TestFormat_Idempotent(t *testing.T) {
	for _, in := range []string{"No major issues found", "- Risk: late fees", ""} {
		once := Format(in)
		assert.Equal(t, once, Format(once))
	}
}

func TestRenderHTML(t *testing.T) {
	html, err := RenderHTML("**Major Risks**\n\n- Uncapped liability\n- Auto renewal")

	require.NoError(t, err)
	assert.Contains(t, string(html), "<strong>Major Risks</strong>")
	assert.Contains(t, string(html), "<li>Uncapped liability</li>")
}

func TestRenderHTML_OmitsRawHTML(t *testing.T) {
	html, err := RenderHTML("<script>alert(1)</script>\n\nTerm: <b>12 months</b>")

	require.NoError(t, err)
	assert.NotContains(t, string(html), "<script>")
	assert.NotContains(t, string(html), "alert(1)")
	assert.NotContains(t, string(html), "<b>")
	assert.Contains(t, string(html), "<!-- raw HTML omitted -->")
	assert.Contains(t, string(html), "12 months")
}
