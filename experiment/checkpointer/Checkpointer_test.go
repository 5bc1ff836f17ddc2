package checkpointer

import (
	"bytes"
	"encoding/gob"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counter is a Serializable integer
type counter struct {
	n int
}

func (c *counter) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(c.n)
	return buf.Bytes(), err
}

func (c *counter) GobDecode(data []byte) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(&c.n)
}

func TestEpochFilename(t *testing.T) {
	filename := EpochFilename("out", "policy", ".gob")
	assert.Equal(t, filepath.Join("out", "policy_50.gob"), filename(50))
}

func TestNStep(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "policy")
	c := &counter{}
	check, err := NewNStep(2, c, EpochFilename(dir, "policy", ".gob"))
	require.NoError(t, err)

	for epoch := 1; epoch <= 4; epoch++ {
		c.n = epoch
		require.NoError(t, check.Checkpoint(epoch))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	loaded := &counter{}
	require.NoError(t, Load(loaded, filepath.Join(dir, "policy_4.gob")))
	assert.Equal(t, 4, loaded.n)

	assert.Error(t, Load(loaded, filepath.Join(dir, "policy_3.gob")))

	_, err = NewNStep(0, c, EpochFilename(dir, "policy", ".gob"))
	assert.Error(t, err)
}
