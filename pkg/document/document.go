// Package document holds the stateful view of one transcribed document.
//
// A Manager owns the original ATR result, which it never modifies, and the flat set of line
// segments derived from it. Edits only touch the line segments. Reconciliation
// (UpdatedResult) produces a new result in which every edited element carries an "edited"
// stamp with the edited text and a timestamp.
//
// A Manager is scoped to a single document session and is not safe for concurrent use;
// see package session for serialized access from concurrent callers.
//
// Main Functions:
//
// - New: Indexes a result and returns a Manager for it
// - Manager.EditText / Revert / RevertAll: Mutate the editable view
// - Manager.UpdatedResult / Confirmed: Reconcile edits into the nested document
package document

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/forsete/atrdoc/pkg/atr"
	"github.com/forsete/atrdoc/pkg/lineseg"
)

// ErrLineNotFound is returned by lookups on an index that does not exist
var ErrLineNotFound = errors.New("line segment not found")

// TimestampFormat is the layout of edit timestamps written during reconciliation
const TimestampFormat = "2006-01-02T15:04:05.000Z07:00"

// Options configures a Manager
type Options struct {
	ImageID  string               // Upstream image identifier
	OutputID string               // Upstream output identifier
	FileName string               // Name used for exports (defaults to the result's file name)
	Index    lineseg.IndexOptions // Indexer warnings
	Clock    func() time.Time     // Time source for IDs and edit stamps (nil = time.Now)
}

// EditPair holds the original and edited text of one line
type EditPair struct {
	Original string `json:"original"`
	Edited   string `json:"edited"`
}

// Manager is the editable state of one document
type Manager struct {
	original  *atr.Result
	segments  map[int]lineseg.LineSegment
	keys      []int // sorted segment indices
	id        string
	imageID   string
	outputID  string
	fileName  string
	createdAt time.Time
	clock     func() time.Time
}

// New indexes result and returns a Manager for it. The result is deep-copied.
func New(result *atr.Result, opts Options) *Manager {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	if result == nil {
		result = &atr.Result{}
	}

	m := &Manager{
		original:  result.Clone(),
		segments:  make(map[int]lineseg.LineSegment),
		imageID:   opts.ImageID,
		outputID:  opts.OutputID,
		fileName:  opts.FileName,
		createdAt: clock(),
		clock:     clock,
	}
	if m.fileName == "" {
		m.fileName = baseName(result.FileName)
	}
	if m.fileName == "" {
		m.fileName = "document"
	}
	m.id = fmt.Sprintf("%s_%d_%s", baseName(firstNonEmpty(result.FileName, m.fileName)),
		m.createdAt.UnixMilli(), uuid.NewString()[:8])

	for _, seg := range lineseg.Index(m.original, opts.Index) {
		m.put(seg)
	}
	return m
}

// ID returns the generated document identifier
func (m *Manager) ID() string { return m.id }

// ImageID returns the upstream image identifier
func (m *Manager) ImageID() string { return m.imageID }

// OutputID returns the upstream output identifier
func (m *Manager) OutputID() string { return m.outputID }

// FileName returns the base name used for exports
func (m *Manager) FileName() string { return m.fileName }

// CreatedAt returns when the manager was created
func (m *Manager) CreatedAt() time.Time { return m.createdAt }

// Original returns a deep copy of the result the manager was created from
func (m *Manager) Original() *atr.Result { return m.original.Clone() }

// Len returns the number of line segments
func (m *Manager) Len() int { return len(m.keys) }

// LineSegment returns a copy of the segment at index
func (m *Manager) LineSegment(index int) (lineseg.LineSegment, error) {
	seg, ok := m.segments[index]
	if !ok {
		return lineseg.LineSegment{}, fmt.Errorf("%w: index %d", ErrLineNotFound, index)
	}
	return seg.Clone(), nil
}

// TextContent returns the effective text of the segment at index
func (m *Manager) TextContent(index int) (string, error) {
	seg, ok := m.segments[index]
	if !ok {
		return "", fmt.Errorf("%w: index %d", ErrLineNotFound, index)
	}
	return seg.EffectiveText(), nil
}

// LineSegments returns copies of all segments ordered by index
func (m *Manager) LineSegments() []lineseg.LineSegment {
	out := make([]lineseg.LineSegment, 0, len(m.keys))
	for _, k := range m.keys {
		out = append(out, m.segments[k].Clone())
	}
	return out
}

// LineIndices returns all segment indices in ascending order
func (m *Manager) LineIndices() []int {
	return append([]int{}, m.keys...)
}

// SetLineSegment inserts or replaces the segment with seg.OriginalIndex.
// An edit on seg is only written back by UpdatedResult when seg.ElementIndex names an
// element of the original result and seg.CandidateIndex one of that element's candidates;
// other segments are kept here but never stamped.
func (m *Manager) SetLineSegment(seg lineseg.LineSegment) {
	m.put(seg.Clone())
}

// SetLineSegments upserts every segment by its own index.
// Segments not present in the input are kept.
func (m *Manager) SetLineSegments(segs []lineseg.LineSegment) {
	for _, seg := range segs {
		m.put(seg.Clone())
	}
}

// EditText marks the segment at index as edited with newContent.
// It returns false when the index does not exist.
func (m *Manager) EditText(index int, newContent string) bool {
	seg, ok := m.segments[index]
	if !ok {
		return false
	}
	m.segments[index] = seg.WithEdit(newContent)
	return true
}

// Revert discards the edit of the segment at index.
// It returns false when the index does not exist.
func (m *Manager) Revert(index int) bool {
	seg, ok := m.segments[index]
	if !ok {
		return false
	}
	m.segments[index] = seg.Reverted()
	return true
}

// RevertAll discards every edit
func (m *Manager) RevertAll() {
	for _, k := range m.keys {
		m.segments[k] = m.segments[k].Reverted()
	}
}

// HasEdits reports whether any segment is marked edited
func (m *Manager) HasEdits() bool {
	for _, seg := range m.segments {
		if seg.Edited {
			return true
		}
	}
	return false
}

// EditedAndOriginal returns the original and edited text of every edited segment
func (m *Manager) EditedAndOriginal() map[int]EditPair {
	out := make(map[int]EditPair)
	for _, k := range m.keys {
		seg := m.segments[k]
		if !seg.Edited {
			continue
		}
		pair := EditPair{Original: seg.TextContent}
		if seg.EditedContent != nil {
			pair.Edited = *seg.EditedContent
		}
		out[k] = pair
	}
	return out
}

// TextArray returns the effective text of every segment in index order
func (m *Manager) TextArray() []string {
	out := make([]string, 0, len(m.keys))
	for _, k := range m.keys {
		out = append(out, m.segments[k].EffectiveText())
	}
	return out
}

// TextString joins the effective text of every segment with newlines
func (m *Manager) TextString() string {
	return strings.Join(m.TextArray(), "\n")
}

// BoundingBox returns the bounding box of the segment at index
func (m *Manager) BoundingBox(index int) (atr.BoundingBox, bool) {
	seg, ok := m.segments[index]
	return seg.BBox, ok
}

// BoundingBoxes returns the bounding box of every segment keyed by index
func (m *Manager) BoundingBoxes() map[int]atr.BoundingBox {
	out := make(map[int]atr.BoundingBox, len(m.keys))
	for _, k := range m.keys {
		out[k] = m.segments[k].BBox
	}
	return out
}

// Polygon returns a copy of the polygon of the segment at index
func (m *Manager) Polygon(index int) (atr.Polygon, bool) {
	seg, ok := m.segments[index]
	if !ok {
		return atr.Polygon{}, false
	}
	return seg.Polygon.Clone(), true
}

// Polygons returns copies of every polygon in index order
func (m *Manager) Polygons() []atr.Polygon {
	out := make([]atr.Polygon, 0, len(m.keys))
	for _, k := range m.keys {
		out = append(out, m.segments[k].Polygon.Clone())
	}
	return out
}

// UpdatedResult returns a copy of the original result with every edit stamped onto the
// element it came from. Within one element the edited candidate with the lowest candidate
// index wins. Segments whose element or candidate does not exist in the original are
// skipped. Stamps already present in the original are kept unless overwritten.
func (m *Manager) UpdatedResult() *atr.Result {
	out := m.original.Clone()
	timestamp := m.clock().UTC().Format(TimestampFormat)

	stamped := make(map[int]bool)
	for _, seg := range m.byCandidate() {
		if !seg.Edited || seg.EditedContent == nil || stamped[seg.ElementIndex] {
			continue
		}
		if !m.hasCandidate(out, seg) {
			continue
		}
		out.Contains[seg.ElementIndex].Edited = &atr.EditedInfo{
			Text:      *seg.EditedContent,
			Timestamp: timestamp,
		}
		stamped[seg.ElementIndex] = true
	}
	return out
}

// hasCandidate reports whether seg points at an existing candidate of result
func (m *Manager) hasCandidate(result *atr.Result, seg lineseg.LineSegment) bool {
	if seg.ElementIndex < 0 || seg.ElementIndex >= len(result.Contains) {
		return false
	}
	tr := result.Contains[seg.ElementIndex].TextResult
	return tr != nil && seg.CandidateIndex >= 0 && seg.CandidateIndex < len(tr.Texts)
}

// Confirmed returns the reconciled result wrapped in the save envelope
func (m *Manager) Confirmed() atr.Confirmed {
	return atr.Confirm(m.UpdatedResult())
}

// byCandidate returns segments ordered by element, then candidate
func (m *Manager) byCandidate() []lineseg.LineSegment {
	segs := make([]lineseg.LineSegment, 0, len(m.keys))
	for _, k := range m.keys {
		segs = append(segs, m.segments[k])
	}
	sort.SliceStable(segs, func(i, j int) bool {
		if segs[i].ElementIndex != segs[j].ElementIndex {
			return segs[i].ElementIndex < segs[j].ElementIndex
		}
		return segs[i].CandidateIndex < segs[j].CandidateIndex
	})
	return segs
}

func (m *Manager) put(seg lineseg.LineSegment) {
	if _, exists := m.segments[seg.OriginalIndex]; !exists {
		pos := sort.SearchInts(m.keys, seg.OriginalIndex)
		m.keys = append(m.keys, 0)
		copy(m.keys[pos+1:], m.keys[pos:])
		m.keys[pos] = seg.OriginalIndex
	}
	m.segments[seg.OriginalIndex] = seg
}

func baseName(fileName string) string {
	if i := strings.Index(fileName, "."); i >= 0 {
		return fileName[:i]
	}
	return fileName
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
