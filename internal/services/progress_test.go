package services

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLineWriterSplitsAndFlushes(t *testing.T) {
	var lines []string
	w := newLineWriter(func(l string) { lines = append(lines, l) })

	_, _ = io.WriteString(w, "Previewing update\r\n\n   \n+ aws:s3:Bucket")
	_, _ = io.WriteString(w, " logs create\nResources: 2 to cre")
	assert.Equal(t, []string{"Previewing update", "+ aws:s3:Bucket logs create"}, lines)

	w.Flush()
	assert.Equal(t, "Resources: 2 to cre", lines[len(lines)-1])

	w.Flush()
	assert.Len(t, lines, 3)
}
