package interactions

import (
	"cmp"
	"slices"
	"strings"

	"github.com/giygas/interactions-api/interactions/entities"
)

// NoteMarker separates the interaction description from the clinical note
const NoteMarker = "Comment:"

// severityOrder lists the closed severity set from most to least severe
var severityOrder = []string{
	entities.SeverityContraindicated,
	entities.SeveritySerious,
	entities.SeverityMonitor,
	entities.SeverityMinor,
}

var severityByFold = func() map[string]string {
	m := make(map[string]string, len(severityOrder))
	for _, s := range severityOrder {
		m[foldSeverity(s)] = s
	}
	return m
}()

func foldSeverity(label string) string {
	return strings.ToLower(strings.Join(strings.Fields(label), " "))
}

// ClassifySeverity maps a reported label onto the closed set, or Unknown
func ClassifySeverity(label string) string {
	if s, ok := severityByFold[foldSeverity(label)]; ok {
		return s
	}
	return entities.SeverityUnknown
}

// SeverityRank orders buckets for presentation, 0 being the most severe
func SeverityRank(label string) int {
	if i := slices.Index(severityOrder, label); i >= 0 {
		return i
	}
	return len(severityOrder)
}

// ExtractNote returns the trimmed text after the first NoteMarker, or "" when absent
func ExtractNote(text string) string {
	_, after, found := strings.Cut(text, NoteMarker)
	if !found {
		return ""
	}
	return strings.TrimSpace(after)
}

// Format classifies raw records into severity buckets. Every record lands in
// exactly one bucket; unrecognised labels go to Unknown.
func Format(raw []entities.RawInteraction) entities.SeverityBuckets {
	type indexed struct {
		pos int
		raw entities.RawInteraction
	}

	grouped := make(map[string][]indexed)
	for i, r := range raw {
		bucket := ClassifySeverity(r.Severity)
		grouped[bucket] = append(grouped[bucket], indexed{pos: i, raw: r})
	}

	buckets := make(entities.SeverityBuckets, len(grouped))
	for bucket, items := range grouped {
		// Provider severity id descending, provider order otherwise
		slices.SortStableFunc(items, func(a, b indexed) int {
			if c := cmp.Compare(b.raw.SeverityID, a.raw.SeverityID); c != 0 {
				return c
			}
			return cmp.Compare(a.pos, b.pos)
		})

		records := make([]entities.InteractionRecord, 0, len(items))
		for _, it := range items {
			records = append(records, formatRecord(bucket, it.raw))
		}
		buckets[bucket] = records
	}

	return buckets
}

func formatRecord(bucket string, r entities.RawInteraction) entities.InteractionRecord {
	rec := entities.InteractionRecord{
		Severity:    bucket,
		Subject:     r.Subject,
		Object:      r.Object,
		Pair:        r.Subject + " and " + r.Object,
		Description: r.Text,
		Note:        ExtractNote(r.Text),
	}
	if bucket == entities.SeverityUnknown {
		rec.ReportedSeverity = strings.TrimSpace(r.Severity)
	}
	return rec
}
