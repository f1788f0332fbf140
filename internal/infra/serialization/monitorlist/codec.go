// Package monitorlist encodes the monitor's tracked items into the single
// delimited string kept in persistent storage, and decodes it back.
//
// The layout is a storage compatibility contract:
//
//	record := id FieldSep title FieldSep watchable FieldSep uiType FieldSep flags [FieldSep subIDs]
//	list   := record { ListSep record }
//
// flags and subIDs are comma separated. Every value is escaped so that no
// delimiter can occur inside it. Only identity and activation bookkeeping is
// stored; status is always re-queried from the server on recovery.
package monitorlist

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/ahrav/jobwatch/internal/domain/background"
)

// Delimiters of the persisted layout.
const (
	ListSep  = "<<MONITOR_ITEM>>"
	FieldSep = "<<MI_FIELD>>"
	SubSep   = ","
)

const (
	minFields = 5
	maxFields = 6
)

var escaper = strings.NewReplacer("%", "%25", "<", "%3C", ",", "%2C")

// ErrMalformedRecord marks a persisted record that could not be decoded.
var ErrMalformedRecord = errors.New("malformed monitor record")

// MalformedRecordError describes why the record at Index was skipped.
type MalformedRecordError struct {
	Index  int
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("record %d: %s: %s", e.Index, ErrMalformedRecord, e.Reason)
}

// Is lets errors.Is match ErrMalformedRecord.
func (e *MalformedRecordError) Is(target error) bool { return target == ErrMalformedRecord }

func malformed(i int, format string, args ...any) error {
	return &MalformedRecordError{Index: i, Reason: fmt.Sprintf(format, args...)}
}

// Record is the persisted form of one tracked item.
type Record struct {
	ID        string            `yaml:"id"`
	Title     string            `yaml:"title"`
	Watchable bool              `yaml:"watchable"`
	UIType    background.UIType `yaml:"ui_type"`
	Activated []bool            `yaml:"activated"`
	// SubIDs is nil for a single job and holds the member ids of a composite.
	SubIDs []string `yaml:"sub_ids,omitempty"`
}

// IsComposite reports whether the record describes a composite item.
func (r Record) IsComposite() bool { return r.SubIDs != nil }

// FromItem captures the persisted fields of item.
func FromItem(item *background.TrackedItem) Record {
	r := Record{
		ID:        item.ID(),
		Title:     item.Title(),
		Watchable: item.Watchable(),
		UIType:    item.UIType(),
		Activated: item.ActivationFlags(),
	}
	if item.IsComposite() {
		r.SubIDs = item.JobIDs()
	}
	return r
}

// SerializeMonitorList encodes every item that is still worth recreating.
// Items in a fail-like state are skipped.
func SerializeMonitorList(items []*background.TrackedItem) string {
	records := make([]Record, 0, len(items))
	for _, it := range items {
		if it.State().IsFail() {
			continue
		}
		records = append(records, FromItem(it))
	}
	return Encode(records)
}

// Encode joins records into the persisted layout.
func Encode(records []Record) string {
	parts := make([]string, 0, len(records))
	for _, r := range records {
		parts = append(parts, encodeRecord(r))
	}
	return strings.Join(parts, ListSep)
}

func encodeRecord(r Record) string {
	flags := make([]string, len(r.Activated))
	for i, f := range r.Activated {
		flags[i] = strconv.FormatBool(f)
	}

	fields := []string{
		escape(r.ID),
		escape(r.Title),
		strconv.FormatBool(r.Watchable),
		escape(string(r.UIType)),
		strings.Join(flags, SubSep),
	}
	if r.IsComposite() {
		ids := make([]string, len(r.SubIDs))
		for i, id := range r.SubIDs {
			ids[i] = escape(id)
		}
		fields = append(fields, strings.Join(ids, SubSep))
	}
	return strings.Join(fields, FieldSep)
}

// Decode parses the persisted layout. Records that fail validation are
// skipped and reported in the returned error slice; the remaining records are
// still returned.
func Decode(text string) ([]Record, []error) {
	if text == "" {
		return nil, nil
	}

	var (
		records []Record
		errs    []error
	)
	for i, raw := range strings.Split(text, ListSep) {
		if raw == "" {
			continue
		}
		rec, err := decodeRecord(i, raw)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		records = append(records, rec)
	}
	return records, errs
}

func decodeRecord(i int, raw string) (Record, error) {
	fields := strings.SplitN(raw, FieldSep, maxFields+1)
	if len(fields) < minFields || len(fields) > maxFields {
		return Record{}, malformed(i, "expected %d or %d fields, got %d", minFields, maxFields, len(fields))
	}

	id, err := unescape(fields[0])
	if err != nil || id == "" {
		return Record{}, malformed(i, "invalid id %q", fields[0])
	}
	title, err := unescape(fields[1])
	if err != nil {
		return Record{}, malformed(i, "invalid title: %v", err)
	}
	watchable, err := strconv.ParseBool(fields[2])
	if err != nil {
		return Record{}, malformed(i, "invalid watchable %q", fields[2])
	}
	uiName, err := unescape(fields[3])
	if err != nil {
		return Record{}, malformed(i, "invalid ui type: %v", err)
	}
	uiType, err := background.ParseUIType(uiName)
	if err != nil {
		return Record{}, malformed(i, "%v", err)
	}

	flags, err := decodeFlags(fields[4])
	if err != nil {
		return Record{}, malformed(i, "%v", err)
	}

	rec := Record{
		ID:        id,
		Title:     title,
		Watchable: watchable,
		UIType:    uiType,
		Activated: flags,
	}

	if len(fields) == maxFields {
		ids, err := decodeSubIDs(fields[5])
		if err != nil {
			return Record{}, malformed(i, "%v", err)
		}
		if len(ids) != len(flags) {
			return Record{}, malformed(i, "%d activation flags for %d sub-jobs", len(flags), len(ids))
		}
		rec.SubIDs = ids
	} else if len(flags) > 1 {
		return Record{}, malformed(i, "%d activation flags for a single job", len(flags))
	}

	return rec, nil
}

func decodeFlags(field string) ([]bool, error) {
	if field == "" {
		return nil, nil
	}
	parts := strings.Split(field, SubSep)
	flags := make([]bool, len(parts))
	for i, p := range parts {
		b, err := strconv.ParseBool(p)
		if err != nil {
			return nil, fmt.Errorf("invalid activation flag %q", p)
		}
		flags[i] = b
	}
	return flags, nil
}

func decodeSubIDs(field string) ([]string, error) {
	if field == "" {
		return nil, errors.New("composite without sub-job ids")
	}
	parts := strings.Split(field, SubSep)
	ids := make([]string, len(parts))
	for i, p := range parts {
		id, err := unescape(p)
		if err != nil || id == "" {
			return nil, fmt.Errorf("invalid sub-job id %q", p)
		}
		ids[i] = id
	}
	return ids, nil
}

func escape(s string) string { return escaper.Replace(s) }

func unescape(s string) (string, error) { return url.PathUnescape(s) }
