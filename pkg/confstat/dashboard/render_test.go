package dashboard

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/cognicore/confstat/pkg/confstat/series"
)

func renderSample(t *testing.T, doc *Document) (string, *html.Node) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, doc))
	root, err := html.Parse(strings.NewReader(buf.String()))
	require.NoError(t, err)
	return buf.String(), root
}

func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// payload extracts the JSON document embedded in the page script.
func payload(t *testing.T, root *html.Node) clientDoc {
	t.Helper()
	var script string
	walk(root, func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "script" && n.FirstChild != nil {
			script += n.FirstChild.Data
		}
	})
	const marker = "const DATA = "
	start := strings.Index(script, marker)
	require.GreaterOrEqual(t, start, 0, "payload marker missing")
	rest := script[start+len(marker):]
	end := strings.Index(rest, ";\n")
	require.GreaterOrEqual(t, end, 0)

	var doc clientDoc
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(rest[:end])), &doc))
	return doc
}

func TestRenderEmbedsEveryBinding(t *testing.T) {
	doc := buildSample(t, Options{})
	_, root := renderSample(t, doc)
	got := payload(t, root)

	assert.Equal(t, doc.ID, got.ID)
	require.Len(t, got.Slots, len(doc.Slots))
	require.Len(t, got.Panels, 2)

	line := got.Panels[0]
	assert.Equal(t, GlyphLine, line.Glyph)
	assert.Equal(t, []string{series.TotalLabel, "CV", "NLP"}, line.Labels)
	assert.Equal(t, []string{"created", "finished"}, line.Variants)
	assert.Equal(t, doc.Panels[0].Bindings, line.Bindings)
	assert.Equal(t, []int{0, 1, 2}, line.Active)
	assert.True(t, line.Toggle)

	// every binding resolves to data of the element's glyph
	for _, row := range line.Bindings {
		for _, id := range row {
			s := got.Slots[id]
			assert.Len(t, s.X, 1)
			assert.Empty(t, s.Left)
		}
	}
	finished := got.Slots[line.Bindings[1][0]]
	assert.Equal(t, day2.UnixMilli(), finished.X[0])
	assert.Equal(t, int64(2), finished.Y[0])

	hist := got.Panels[1]
	assert.Equal(t, GlyphQuad, hist.Glyph)
	assert.False(t, hist.Toggle)
	all := got.Slots[hist.Bindings[0][0]]
	assert.Equal(t, []float64{0, 5}, all.Left)
	assert.Equal(t, []float64{5, 10}, all.Right)
	assert.Equal(t, []int64{1, 1}, all.Count)
}

func TestRenderIsSelfContained(t *testing.T) {
	doc := buildSample(t, Options{})
	_, root := renderSample(t, doc)

	walk(root, func(n *html.Node) {
		if n.Type != html.ElementNode {
			return
		}
		switch n.Data {
		case "script", "img", "iframe":
			_, ok := attr(n, "src")
			assert.False(t, ok, "<%s> loads an external resource", n.Data)
		case "link":
			t.Errorf("unexpected <link> element")
		}
	})
}

func TestRenderEscapesLabels(t *testing.T) {
	sets := sampleSets()
	for i := range sets {
		sets[i].Labels = []string{series.TotalLabel, "CV", "</script><b>x</b>"}
	}
	b, err := NewBinder("<Title & Co>", Options{})
	require.NoError(t, err)
	require.NoError(t, b.AddSeriesSets("lines", "Date Type", sets))
	doc, err := b.Build()
	require.NoError(t, err)

	out, root := renderSample(t, doc)
	assert.NotContains(t, out, "</script><b>")
	assert.Contains(t, out, "&lt;Title &amp; Co&gt;")

	got := payload(t, root)
	assert.Equal(t, "</script><b>x</b>", got.Panels[0].Labels[2])
}

func TestRenderTitleAndMeta(t *testing.T) {
	doc := buildSample(t, Options{})
	_, root := renderSample(t, doc)

	var title string
	var meta string
	walk(root, func(n *html.Node) {
		if n.Type != html.ElementNode {
			return
		}
		if n.Data == "title" && n.FirstChild != nil {
			title = n.FirstChild.Data
		}
		if n.Data == "meta" {
			if name, _ := attr(n, "name"); name == "confstat-document" {
				meta, _ = attr(n, "content")
			}
		}
	})
	assert.Equal(t, "ICLR 2024", title)
	assert.Equal(t, doc.ID, meta)
}

func TestRenderLinePointsCarryHoverReadout(t *testing.T) {
	doc := buildSample(t, Options{})
	page, root := renderSample(t, doc)
	got := payload(t, root)

	line := got.Panels[0]
	want := map[string][]string{
		"created":  {"Total / 2024-01-01 / 2", "CV / 2024-01-01 / 1", "NLP / 2024-01-01 / 1"},
		"finished": {"Total / 2024-01-02 / 2", "CV / 2024-01-02 / 1", "NLP / 2024-01-02 / 1"},
	}
	for v, row := range line.Bindings {
		for i, id := range row {
			slot := got.Slots[id]
			require.Len(t, slot.Tips, len(slot.X), "one readout per point")
			assert.Equal(t, want[line.Variants[v]][i], slot.Tips[0])
		}
	}

	for _, row := range got.Panels[1].Bindings {
		for _, id := range row {
			assert.Empty(t, got.Slots[id].Tips, "histogram slots carry bin titles only")
		}
	}

	assert.Contains(t, page, `"svg:circle"`)
	assert.Contains(t, page, "Chart.prototype.hover")
}

func TestPointTipUsesBucketLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	midnight := time.Date(2024, 3, 5, 0, 0, 0, 0, tokyo)

	assert.Equal(t, "CV / 2024-03-05 / 7", pointTip("CV", midnight, 7))
}
