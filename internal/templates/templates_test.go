package templates

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltin(t *testing.T) {
	c := Builtin()
	require.Len(t, c.All(), 3)

	listicle, ok := c.Get("listicle")
	require.True(t, ok)
	assert.Equal(t, []string{"intro", "point", "point", "point", "point", "point", "conclusion"}, listicle.SegmentTypes())

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestLoadMergesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
templates:
  - id: how-to
    name: Quick How-To
    structure:
      - type: intro
        purpose: Hook
      - type: conclusion
        purpose: Wrap up
  - id: story
    name: Story
    structure:
      - type: intro
        purpose: Set the scene
`), 0644))

	c, err := Load(path)
	require.NoError(t, err)

	howTo, _ := c.Get("how-to")
	assert.Equal(t, "Quick How-To", howTo.Name)
	assert.Equal(t, []string{"intro", "conclusion"}, howTo.SegmentTypes())

	ids := make([]string, 0)
	for _, tmpl := range c.All() {
		ids = append(ids, tmpl.ID)
	}
	assert.Equal(t, []string{"problem-solution", "how-to", "listicle", "story"}, ids)
	assert.Equal(t, []string{"how-to", "listicle", "problem-solution", "story"}, c.IDs())
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()

	noID := filepath.Join(dir, "noid.yaml")
	require.NoError(t, os.WriteFile(noID, []byte("templates:\n  - name: x\n    structure:\n      - type: intro\n"), 0644))
	_, err := Load(noID)
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("templates:\n  - id: x\n"), 0644))
	_, err = Load(empty)
	assert.Error(t, err)

	_, err = Load(filepath.Join(dir, "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadEmptyPath(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Len(t, c.All(), 3)
}
