package datasource

import (
	"sort"

	"github.com/goccy/go-json"

	"github.com/mverbeek/sensetrack/pkg/model"
)

// RequestDiff summarizes what changed between two dataset loads.
// TouchedSubjects lists every student whose entries were added, removed,
// or modified; callers use it to invalidate cached results per subject
// instead of clearing the whole cache.
type RequestDiff struct {
	Added           int      `json:"added"`
	Removed         int      `json:"removed"`
	Changed         int      `json:"changed"`
	Unchanged       int      `json:"unchanged"`
	TouchedSubjects []string `json:"touched_subjects"`
}

// Empty reports whether the two loads were identical.
func (d RequestDiff) Empty() bool {
	return d.Added == 0 && d.Removed == 0 && d.Changed == 0
}

type diffRecord struct {
	subject string
	body    string
}

// DiffRequests compares two loads entry by entry, keyed by entry ID
// within each collection.
func DiffRequests(prev, next model.AnalyticsRequest) RequestDiff {
	var d RequestDiff
	touched := make(map[string]struct{})

	diffMaps(indexRequest(prev), indexRequest(next), &d, touched)

	d.TouchedSubjects = make([]string, 0, len(touched))
	for s := range touched {
		d.TouchedSubjects = append(d.TouchedSubjects, s)
	}
	sort.Strings(d.TouchedSubjects)
	return d
}

func indexRequest(req model.AnalyticsRequest) map[string]diffRecord {
	idx := make(map[string]diffRecord, req.TotalPoints())
	for _, e := range req.Emotions {
		idx["emotion/"+e.ID] = diffRecord{subject: e.StudentID, body: marshalBody(e)}
	}
	for _, s := range req.SensoryInputs {
		idx["sensory/"+s.ID] = diffRecord{subject: s.StudentID, body: marshalBody(s)}
	}
	for _, t := range req.Entries {
		idx["session/"+t.ID] = diffRecord{subject: t.StudentID, body: marshalBody(t)}
	}
	return idx
}

func diffMaps(prev, next map[string]diffRecord, d *RequestDiff, touched map[string]struct{}) {
	for key, nr := range next {
		pr, ok := prev[key]
		switch {
		case !ok:
			d.Added++
			mark(touched, nr.subject)
		case pr.body != nr.body:
			d.Changed++
			mark(touched, pr.subject)
			mark(touched, nr.subject)
		default:
			d.Unchanged++
		}
	}
	for key, pr := range prev {
		if _, ok := next[key]; !ok {
			d.Removed++
			mark(touched, pr.subject)
		}
	}
}

func mark(touched map[string]struct{}, subject string) {
	if subject != "" {
		touched[subject] = struct{}{}
	}
}

func marshalBody(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
