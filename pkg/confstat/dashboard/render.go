package dashboard

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"time"
)

//go:embed templates/dashboard.html
var templateFS embed.FS

var dashboardTmpl = template.Must(template.New("dashboard.html").ParseFS(templateFS, "templates/dashboard.html"))

// clientDoc is the data shipped to the viewer. Slots are addressed by
// position, so control handlers index arrays instead of looking names up.
type clientDoc struct {
	ID     string        `json:"id"`
	Title  string        `json:"title"`
	Slots  []clientSlot  `json:"slots"`
	Panels []clientPanel `json:"panels"`
}

// clientSlot carries line points with their hover readout (Tips) or
// histogram bins.
type clientSlot struct {
	X     []int64   `json:"x,omitempty"`
	Y     []int64   `json:"y,omitempty"`
	Tips  []string  `json:"tips,omitempty"`
	Left  []float64 `json:"left,omitempty"`
	Right []float64 `json:"right,omitempty"`
	Count []int64   `json:"count,omitempty"`
}

type clientPanel struct {
	Title        string     `json:"title"`
	Glyph        Glyph      `json:"glyph"`
	XLabel       string     `json:"xLabel"`
	YLabel       string     `json:"yLabel"`
	VariantTitle string     `json:"variantTitle"`
	Variants     []string   `json:"variants"`
	Labels       []string   `json:"labels"`
	Colors       []string   `json:"colors"`
	Toggle       bool       `json:"toggle"`
	Bindings     [][]SlotID `json:"bindings"`
	Active       []int      `json:"active"`
	Variant      int        `json:"variant"`
}

type pageData struct {
	Title       string
	ID          string
	GeneratedAt string
	Payload     clientDoc
}

// Render writes doc as a standalone HTML page. The page embeds every slot
// and needs no network access.
func Render(w io.Writer, doc *Document) error {
	data := pageData{
		Title:       doc.Title,
		ID:          doc.ID,
		GeneratedAt: doc.GeneratedAt.Format(time.RFC3339),
		Payload:     toClient(doc),
	}
	if err := dashboardTmpl.Execute(w, data); err != nil {
		return fmt.Errorf("execute dashboard template: %w", err)
	}
	return nil
}

// pointTip formats the date in the location the series was bucketed in.
func pointTip(label string, date time.Time, count int64) string {
	return fmt.Sprintf("%s / %s / %d", label, date.Format("2006-01-02"), count)
}

func toClient(doc *Document) clientDoc {
	out := clientDoc{
		ID:     doc.ID,
		Title:  doc.Title,
		Slots:  make([]clientSlot, len(doc.Slots)),
		Panels: make([]clientPanel, len(doc.Panels)),
	}
	for i, s := range doc.Slots {
		var cs clientSlot
		switch s.Glyph {
		case GlyphLine:
			cs.X = make([]int64, len(s.Line))
			cs.Y = make([]int64, len(s.Line))
			cs.Tips = make([]string, len(s.Line))
			for j, p := range s.Line {
				cs.X[j] = p.Date.UnixMilli()
				cs.Y[j] = p.Count
				cs.Tips[j] = pointTip(s.Label, p.Date, p.Count)
			}
		case GlyphQuad:
			cs.Left = make([]float64, len(s.Bins))
			cs.Right = make([]float64, len(s.Bins))
			cs.Count = make([]int64, len(s.Bins))
			for j, b := range s.Bins {
				cs.Left[j], cs.Right[j], cs.Count[j] = b.Left, b.Right, b.Count
			}
		}
		out.Slots[i] = cs
	}
	for i, p := range doc.Panels {
		cp := clientPanel{
			Title:        p.Title,
			Glyph:        p.Glyph,
			XLabel:       p.XLabel,
			YLabel:       p.YLabel,
			VariantTitle: p.VariantTitle,
			Variants:     p.Variants,
			Toggle:       p.Toggle,
			Bindings:     p.Bindings,
			Active:       p.Initial.Active,
			Variant:      p.Initial.Variant,
		}
		for _, e := range p.Elements {
			cp.Labels = append(cp.Labels, e.Label)
			cp.Colors = append(cp.Colors, e.Color)
		}
		out.Panels[i] = cp
	}
	return out
}
