package core

import (
	"bytes"
	"context"
	"errors"
	"os"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func fixedHeight(h float64) func(string) float64 {
	return func(string) float64 { return h }
}

func TestFitProperties_StripsPrefixAndSkipsEmpty(t *testing.T) {
	prefix := regexp.MustCompile(`^Sorte\s*`)
	props := []Attribute{
		{Key: "Sorte 1", Value: "Vanille"},
		{Key: "Grußtext", Value: ""},
		{Key: "Sorte2", Value: "Schoko"},
		{Key: "Name", Value: "Anna"},
	}

	lines := fitProperties(props, prefix, 5, 85, 2, fixedHeight(6))

	require.Len(t, lines, 3)
	assert.Equal(t, "1: Vanille", lines[0].Text)
	assert.Equal(t, "2: Schoko", lines[1].Text)
	assert.Equal(t, "Name: Anna", lines[2].Text)
	assert.Equal(t, []float64{5, 13, 21}, []float64{lines[0].Y, lines[1].Y, lines[2].Y})
}

func TestFitProperties_StopsAtFirstOverflow(t *testing.T) {
	props := []Attribute{
		{Key: "a", Value: "1"},
		{Key: "b", Value: "long"},
		{Key: "c", Value: "3"},
	}
	measure := func(text string) float64 {
		if text == "b: long" {
			return 30
		}
		return 6
	}

	lines := fitProperties(props, nil, 5, 30, 2, measure)

	require.Len(t, lines, 1)
	assert.Equal(t, "a: 1", lines[0].Text)
}

func TestFitProperties_LineEndingOnLimitFits(t *testing.T) {
	props := []Attribute{{Key: "a", Value: "1"}, {Key: "b", Value: "2"}}

	lines := fitProperties(props, nil, 5, 19, 2, fixedHeight(6))
	assert.Len(t, lines, 2)
}

func TestFooterText(t *testing.T) {
	job := sampleJob("#1001", 2, 3)
	job.CreatedAt = time.Date(2024, 3, 5, 12, 0, 0, 0, time.Local)
	assert.Equal(t, "05.03.24   2/3", footerText(job))

	job.CreatedAt = time.Time{}
	job.Date = "01.01.2024"
	assert.Equal(t, "01.01.2024   2/3", footerText(job))
}

func newTestRenderer(t *testing.T) (*LabelRenderer, *ArtifactStore, string) {
	t.Helper()
	store, err := NewArtifactStore(t.TempDir())
	require.NoError(t, err)
	scratch := t.TempDir()
	return NewLabelRenderer(store, scratch, "Sorte", zaptest.NewLogger(t)), store, scratch
}

func TestRender_WritesPDF(t *testing.T) {
	r, store, scratch := newTestRenderer(t)
	job := sampleJob("#1001", 1, 2)

	path, err := r.Render(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, store.Path("#1001", 1, 2), path)
	assert.True(t, store.Exists("#1001", 1, 2))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))

	labels, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	assert.Len(t, labels, 1)

	leftovers, err := os.ReadDir(scratch)
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestRender_CancelledContext(t *testing.T) {
	r, store, _ := newTestRenderer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Render(ctx, sampleJob("#1001", 1, 1))

	var renderErr *RenderError
	require.True(t, errors.As(err, &renderErr))
	assert.Equal(t, "#1001", renderErr.OrderName)
	assert.False(t, store.Exists("#1001", 1, 1))
}

func TestRender_MissingScratchDir(t *testing.T) {
	store, err := NewArtifactStore(t.TempDir())
	require.NoError(t, err)
	r := NewLabelRenderer(store, "/nonexistent/scratch", "", zaptest.NewLogger(t))

	_, err = r.Render(context.Background(), sampleJob("#1001", 1, 1))
	var renderErr *RenderError
	assert.True(t, errors.As(err, &renderErr))
	assert.False(t, store.Exists("#1001", 1, 1))
}
