package submission

import (
	"fmt"
	"time"

	"github.com/cognicore/confstat/pkg/confstat/table"
)

// UnknownArea replaces a missing primary area.
const UnknownArea = "Unknown"

// Columns names the flattened fields a submission is read from.
type Columns struct {
	ID       string
	Area     string
	Created  string
	Modified string
	Abstract string
	Keywords string
}

// DefaultColumns matches OpenReview API v2 notes after flattening.
var DefaultColumns = Columns{
	ID:       "id",
	Area:     "content.primary_area.value",
	Created:  "cdate",
	Modified: "mdate",
	Abstract: "content.abstract.value",
	Keywords: "content.keywords.value",
}

// Required lists the columns that must exist in a source table.
func (c Columns) Required() []string {
	return []string{c.Area, c.Created, c.Modified, c.Abstract, c.Keywords}
}

// Submission is one conference submission. It is immutable once built.
type Submission struct {
	ID       string
	Area     string
	Created  time.Time
	Modified time.Time
	Abstract string
	// KeywordList is the serialized keyword list exactly as stored.
	KeywordList string
}

// Keywords decodes the raw keyword list.
func (s Submission) Keywords() ([]string, error) {
	kws, err := table.ParseList(s.KeywordList)
	if err != nil {
		return nil, fmt.Errorf("submission %s: %w", s.ID, err)
	}
	return kws, nil
}

// FromTable reads every row of t as a submission. Missing areas and
// abstracts are replaced by UnknownArea and ""; an unparsable timestamp
// aborts with the row position.
func FromTable(t *table.Table, cols Columns) ([]Submission, error) {
	if err := t.Require(cols.Required()...); err != nil {
		return nil, err
	}

	subs := make([]Submission, 0, t.Len())
	for _, row := range t.Rows() {
		created, err := row.Time(cols.Created, time.UTC)
		if err != nil {
			return nil, err
		}
		modified, err := row.Time(cols.Modified, time.UTC)
		if err != nil {
			return nil, err
		}
		id := row.String(cols.ID, fmt.Sprintf("row-%d", row.Index))
		kws, _ := row.Value(cols.Keywords)

		subs = append(subs, Submission{
			ID:          id,
			Area:        row.String(cols.Area, UnknownArea),
			Created:     created,
			Modified:    modified,
			Abstract:    row.String(cols.Abstract, ""),
			KeywordList: kws,
		})
	}
	return subs, nil
}
