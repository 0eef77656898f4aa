package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderMarkdown(t *testing.T) {
	out := RenderMarkdown("# hello\n\nsome *emphasis* here")

	assert.Contains(t, out, "hello")
	assert.Contains(t, out, "<em>emphasis</em>")
}

func TestRenderMarkdownStripsScript(t *testing.T) {
	out := RenderMarkdown(`hi <script>alert("xss")</script> there`)

	assert.NotContains(t, out, "<script>")
	assert.NotContains(t, out, "alert(")
	assert.Contains(t, out, "hi")
}

func TestRenderMarkdownStripsEventHandlers(t *testing.T) {
	out := RenderMarkdown(`<a href="https://example.com" onclick="evil()">link</a>`)

	assert.NotContains(t, out, "onclick")
	assert.Contains(t, out, "link")
}

func TestRenderMarkdownKeepsImages(t *testing.T) {
	out := RenderMarkdown(`![cat](https://example.com/cat.png)`)

	assert.Contains(t, out, "<img")
	assert.Contains(t, out, `src="https://example.com/cat.png"`)
}
