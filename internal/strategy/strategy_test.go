package strategy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDoc = `---
name: momentum-v2
version: 3
risk_level: moderate
max_position_pct: 0.25
tags: [momentum, swing]
---

# Trading Strategy

Buy breakouts above the 20-period high with rising volume.
Never add to losing positions.
`

func TestParseFrontMatter(t *testing.T) {
	snap, err := Parse(sampleDoc)
	require.NoError(t, err)
	assert.Equal(t, "momentum-v2", snap.Meta.Name)
	assert.Equal(t, 3, snap.Meta.Version)
	assert.Equal(t, "moderate", snap.Meta.RiskLevel)
	assert.InDelta(t, 0.25, snap.Meta.MaxPerTrad, 1e-9)
	assert.Equal(t, []string{"momentum", "swing"}, snap.Meta.Tags)
	assert.Contains(t, snap.Body, "# Trading Strategy")
	assert.NotContains(t, snap.Body, "risk_level")
}

func TestParseWithoutFrontMatter(t *testing.T) {
	snap, err := Parse("Just buy low, sell high.\n")
	require.NoError(t, err)
	assert.Empty(t, snap.Meta.Name)
	assert.Equal(t, "Just buy low, sell high.", snap.Body)
}

func TestParseRejectsEmptyBody(t *testing.T) {
	_, err := Parse("---\nname: empty\n---\n\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "body is empty")
}

func TestParseRejectsUnterminatedFrontMatter(t *testing.T) {
	_, err := Parse("---\nname: broken\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unterminated")
}

func TestLoaderReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "strategy.md")
	require.NoError(t, os.WriteFile(path, []byte(sampleDoc), 0o644))

	l, err := NewLoader(path)
	require.NoError(t, err)
	defer l.Close()

	snap := l.Snapshot()
	assert.Equal(t, "momentum-v2", snap.Meta.Name)
	assert.Contains(t, snap.Body, "breakouts")
}

func TestLoaderMissingFile(t *testing.T) {
	_, err := NewLoader(filepath.Join(t.TempDir(), "missing.md"))
	require.Error(t, err)
}
