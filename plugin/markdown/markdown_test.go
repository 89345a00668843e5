package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderHTML(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		contains []string
		absent   []string
	}{
		{
			name:     "paragraph",
			input:    "Bonjour !",
			contains: []string{"<p>Bonjour !</p>"},
		},
		{
			name:     "emphasis",
			input:    "C'est **important**.",
			contains: []string{"<strong>important</strong>"},
		},
		{
			name:     "list",
			input:    "- un\n- deux",
			contains: []string{"<ul>", "<li>un</li>", "<li>deux</li>"},
		},
		{
			name:     "hard wraps",
			input:    "ligne un\nligne deux",
			contains: []string{"<br"},
		},
		{
			name:   "raw html dropped",
			input:  "<script>alert(1)</script>",
			absent: []string{"<script>"},
		},
		{
			name:     "escaped text",
			input:    "1 < 2 & 3",
			contains: []string{"1 &lt; 2 &amp; 3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RenderHTML(tt.input)
			require.NoError(t, err)
			for _, want := range tt.contains {
				assert.Contains(t, got, want)
			}
			for _, unwanted := range tt.absent {
				assert.NotContains(t, got, unwanted)
			}
		})
	}
}

func TestRenderHTML_Empty(t *testing.T) {
	got, err := RenderHTML("")
	require.NoError(t, err)
	assert.Empty(t, got)
}
