package guard

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply_WrapsPlainLists(t *testing.T) {
	out, err := Apply("<p>intro</p>\n<ul>\n<li>one</li>\n</ul>\n<ol><li>two</li></ol>")
	require.NoError(t, err)

	assert.Equal(t, 2, strings.Count(out, BeginMarker))
	assert.Equal(t, 2, strings.Count(out, EndMarker))
	assert.True(t, strings.HasPrefix(out, "<p>intro</p>"))
	assert.Contains(t, out, BeginMarker+"<ul>")
	assert.Contains(t, out, "</ol>"+EndMarker)
}

func TestApply_WrapsGuardedClasses(t *testing.T) {
	for _, class := range GuardedClasses {
		t.Run(class, func(t *testing.T) {
			out, err := Apply(`<div class="outer"><span class="` + class + `">x</span></div><p>after</p>`)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(out, BeginMarker+`<div class="outer">`), out)
			assert.Contains(t, out, "</div>"+EndMarker+"<p>after</p>")
		})
	}
}

func TestApply_LeavesOtherBlocksAlone(t *testing.T) {
	in := `<figure class="kg-card kg-image-card"><img src="a.png"/></figure><p>text</p>`
	out, err := Apply(in)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestApply_Idempotent(t *testing.T) {
	in := `<h2 id="x">X</h2>
<ul class="kg-checklist"><li><input type="checkbox" checked disabled> done</li></ul>
<div class="callout callout-note"><div class="callout-content"><ul><li>a</li></ul></div></div>
<p>tail **bold**</p>`
	once, err := Apply(in)
	require.NoError(t, err)
	twice, err := Apply(once)
	require.NoError(t, err)

	assert.Equal(t, once, twice)
	assert.Equal(t, 2, strings.Count(twice, BeginMarker))
}

func TestApply_StripsLinksInsideCode(t *testing.T) {
	out, err := Apply(`<pre><code>see <a href="https://x.test">https://x.test</a> now</code></pre><p><a href="https://y.test">y</a></p>`)
	require.NoError(t, err)
	assert.Contains(t, out, "<code>see https://x.test now</code>")
	assert.Contains(t, out, `<a href="https://y.test">y</a>`)
}

func TestApply_RestoresBold(t *testing.T) {
	out, err := Apply(`<p>a **b** c **d**</p><p><code>**raw**</code></p>`)
	require.NoError(t, err)
	assert.Contains(t, out, "<p>a <strong>b</strong> c <strong>d</strong></p>")
	assert.Contains(t, out, "<code>**raw**</code>")
}

func TestApply_DropsFootnoteBackrefs(t *testing.T) {
	in := `<div class="footnotes" role="doc-endnotes"><hr/><ol><li id="fn:1"><p>Note&#160;<a href="#fnref:1" class="footnote-backref" role="doc-backlink">↩︎</a></p></li></ol></div>`
	out, err := Apply(in)
	require.NoError(t, err)
	assert.NotContains(t, out, "footnote-backref")
	assert.Contains(t, out, "<p>Note</p>")
	assert.True(t, strings.HasPrefix(out, BeginMarker))
}
