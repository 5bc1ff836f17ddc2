package progressbar

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestManualProgressBar(t *testing.T) {
	var buf bytes.Buffer
	p := NewManualProgressBar(&buf, "Epoch 1", 10, 4)

	assert.Equal(t, 0.0, p.Progress())
	assert.Contains(t, p.String(), "Epoch 1 |          |")

	for i := 0; i < 6; i++ {
		p.Increment()
	}
	assert.Equal(t, 1.0, p.Progress())
	assert.Contains(t, p.String(), strings.Repeat("█", 10))
	assert.Contains(t, p.String(), "100.00%")

	p.Display()
	p.Finish()
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))
	assert.Equal(t, 2, strings.Count(buf.String(), "Epoch 1"))
}

func TestPartialProgress(t *testing.T) {
	p := NewManualProgressBar(&bytes.Buffer{}, "", 4, 4)
	p.Increment()
	assert.Equal(t, 0.25, p.Progress())
	assert.True(t, strings.HasPrefix(p.String(), "|█   |"))
}
