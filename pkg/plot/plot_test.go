package plot_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/segmenter/pkg/crosssection"
	"github.com/Sumatoshi-tech/segmenter/pkg/plot"
)

func TestWrite(t *testing.T) {
	t.Parallel()

	result := crosssection.Result{CrossSections: []crosssection.CrossSection{
		{Group: []string{"H001"}, ID: 0, TrueFrom: 0, TrueTo: 1, Members: make([]crosssection.Member, 1)},
		{Group: []string{"H001"}, ID: 1, TrueFrom: 1, TrueTo: 2, Members: make([]crosssection.Member, 2)},
		{Group: []string{"H002"}, ID: 2, TrueFrom: 0, TrueTo: 4, Members: make([]crosssection.Member, 1)},
	}}

	var buf bytes.Buffer

	require.NoError(t, plot.Write(&buf, result))

	html := buf.String()
	assert.Contains(t, html, "<html")
	assert.Contains(t, html, plot.PageTitle)
	assert.Contains(t, html, "Cross-sections per group")
	assert.Contains(t, html, "Members per cross-section")
	assert.Contains(t, html, "H002")
}

func TestWrite_Empty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	require.NoError(t, plot.Write(&buf, crosssection.Result{}))
	assert.Contains(t, buf.String(), "No data")
	assert.NotContains(t, buf.String(), "Members per cross-section")
}
