package atr

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Parse decodes an ATR result from JSON.
// It fails only when data is not a JSON object; malformed parts are tolerated.
func Parse(data []byte) (*Result, error) {
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse ATR result: %w", err)
	}
	return &r, nil
}

// fields holds the keys of a JSON object that have not been consumed yet
type fields map[string]json.RawMessage

func decodeObject(data []byte) (fields, error) {
	var f fields
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if f == nil {
		return nil, fmt.Errorf("expected JSON object, got null")
	}
	return f, nil
}

// take decodes key into dst and consumes it.
// A key whose value does not decode is left behind and ends up in Extra.
func (f fields) take(key string, dst any) bool {
	raw, ok := f[key]
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false
	}
	delete(f, key)
	return true
}

// keep is take that also records the consumed bytes in src
func (f fields) keep(src *origin, key string, dst any) bool {
	raw := f[key]
	if !f.take(key, dst) {
		return false
	}
	src.record(key, raw, dst)
	return true
}

// array consumes key when it holds a JSON array and returns its items
func (f fields) array(key string) ([]json.RawMessage, bool) {
	raw, ok := f[key]
	if !ok {
		return nil, false
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil || items == nil {
		return nil, false
	}
	delete(f, key)
	return items, true
}

func (f fields) extra() map[string]json.RawMessage {
	if len(f) == 0 {
		return nil
	}
	return map[string]json.RawMessage(f)
}

// origin remembers the decoded keys of an object: their input bytes and the encoding of
// the value they decoded to. A key whose value is unchanged is written back as it was read.
// An origin is never modified after decoding, so clones share it.
type origin struct {
	raw   map[string]json.RawMessage
	canon map[string][]byte
}

func (o *origin) record(key string, raw json.RawMessage, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if o.raw == nil {
		o.raw = make(map[string]json.RawMessage)
		o.canon = make(map[string][]byte)
	}
	o.raw[key] = append(json.RawMessage(nil), raw...)
	o.canon[key] = b
}

// object builds a JSON object from pass-through extras and known keys
type object struct {
	m   map[string]json.RawMessage
	src *origin
	err error
}

func newObject(extra map[string]json.RawMessage, src *origin) *object {
	o := &object{m: make(map[string]json.RawMessage, len(extra)+6), src: src}
	for k, v := range extra {
		o.m[k] = v
	}
	return o
}

func (o *object) set(key string, v any) {
	if o.err != nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		o.err = fmt.Errorf("failed to encode %q: %w", key, err)
		return
	}
	if o.src != nil {
		if raw, ok := o.src.raw[key]; ok && bytes.Equal(b, o.src.canon[key]) {
			b = raw
		}
	}
	o.m[key] = b
}

// field writes key when it was read from the input or holds a non-zero value
func (o *object) field(key string, v any, zero bool) {
	if zero && !o.decoded(key) {
		return
	}
	o.set(key, v)
}

func (o *object) decoded(key string) bool {
	if o.src == nil {
		return false
	}
	_, ok := o.src.raw[key]
	return ok
}

func (o *object) bytes() ([]byte, error) {
	if o.err != nil {
		return nil, o.err
	}
	return json.Marshal(o.m)
}

// UnmarshalJSON implements json.Unmarshaler
func (r *Result) UnmarshalJSON(data []byte) error {
	f, err := decodeObject(data)
	if err != nil {
		return err
	}

	out := Result{src: &origin{}}
	f.keep(out.src, "file_name", &out.FileName)
	f.keep(out.src, "image_name", &out.ImageName)
	f.keep(out.src, "label", &out.Label)

	if items, ok := f.array("contains"); ok {
		out.Contains = make([]TextElement, len(items))
		for i, item := range items {
			if err := json.Unmarshal(item, &out.Contains[i]); err != nil {
				// Keep the position so contains[i] stays aligned with its line segments
				out.Contains[i] = TextElement{raw: append(json.RawMessage(nil), item...)}
			}
		}
	}

	var steps []ProcessingStep
	if f.keep(out.src, "processing_steps", &steps) {
		out.ProcessingSteps = steps
	}

	out.Extra = f.extra()
	*r = out
	return nil
}

// MarshalJSON implements json.Marshaler
func (r Result) MarshalJSON() ([]byte, error) {
	o := newObject(r.Extra, r.src)
	o.field("file_name", r.FileName, r.FileName == "")
	o.field("image_name", r.ImageName, r.ImageName == "")
	o.field("label", r.Label, r.Label == "")
	if r.Contains != nil {
		o.set("contains", r.Contains)
	}
	o.field("processing_steps", r.ProcessingSteps, r.ProcessingSteps == nil)
	return o.bytes()
}

// UnmarshalJSON implements json.Unmarshaler
func (p *ProcessingStep) UnmarshalJSON(data []byte) error {
	f, err := decodeObject(data)
	if err != nil {
		return err
	}
	out := ProcessingStep{src: &origin{}}
	f.keep(out.src, "description", &out.Description)
	f.keep(out.src, "settings", &out.Settings)
	out.Extra = f.extra()
	*p = out
	return nil
}

// MarshalJSON implements json.Marshaler
func (p ProcessingStep) MarshalJSON() ([]byte, error) {
	o := newObject(p.Extra, p.src)
	o.field("description", p.Description, p.Description == "")
	o.set("settings", p.Settings)
	return o.bytes()
}

// UnmarshalJSON implements json.Unmarshaler
func (s *StepSettings) UnmarshalJSON(data []byte) error {
	f, err := decodeObject(data)
	if err != nil {
		return err
	}
	out := StepSettings{src: &origin{}}
	f.keep(out.src, "model_class", &out.ModelClass)
	f.keep(out.src, "model", &out.Model)
	f.keep(out.src, "model_version", &out.ModelVersion)
	f.keep(out.src, "processor", &out.Processor)
	f.keep(out.src, "processor_version", &out.ProcessorVersion)
	out.Extra = f.extra()
	*s = out
	return nil
}

// MarshalJSON implements json.Marshaler
func (s StepSettings) MarshalJSON() ([]byte, error) {
	o := newObject(s.Extra, s.src)
	o.field("model_class", s.ModelClass, s.ModelClass == "")
	o.field("model", s.Model, s.Model == "")
	o.field("model_version", s.ModelVersion, s.ModelVersion == nil)
	o.field("processor", s.Processor, s.Processor == "")
	o.field("processor_version", s.ProcessorVersion, s.ProcessorVersion == "")
	return o.bytes()
}

// Valid reports whether the element was decoded from a JSON object
func (e TextElement) Valid() bool {
	return e.raw == nil
}

// UnmarshalJSON implements json.Unmarshaler
func (e *TextElement) UnmarshalJSON(data []byte) error {
	f, err := decodeObject(data)
	if err != nil {
		return err
	}

	out := TextElement{src: &origin{}}
	var seg Segment
	if f.keep(out.src, "segment", &seg) {
		out.Segment = seg
	}
	var tr TextResult
	if f.keep(out.src, "text_result", &tr) {
		out.TextResult = &tr
	}
	f.keep(out.src, "label", &out.Label)
	if raw, ok := f["edited"]; ok && !isNull(raw) {
		var ed EditedInfo
		if f.keep(out.src, "edited", &ed) {
			out.Edited = &ed
		}
	}

	out.Extra = f.extra()
	*e = out
	return nil
}

// MarshalJSON implements json.Marshaler
func (e TextElement) MarshalJSON() ([]byte, error) {
	if e.raw != nil {
		return e.raw, nil
	}
	o := newObject(e.Extra, e.src)
	o.field("segment", e.Segment, e.Segment.isZero())
	if e.TextResult != nil {
		o.set("text_result", e.TextResult)
	}
	o.field("label", e.Label, e.Label == "")
	if e.Edited != nil {
		o.set("edited", e.Edited)
	}
	return o.bytes()
}

// UnmarshalJSON implements json.Unmarshaler
func (s *Segment) UnmarshalJSON(data []byte) error {
	f, err := decodeObject(data)
	if err != nil {
		return err
	}

	out := Segment{src: &origin{}}
	var bbox BoundingBox
	if f.keep(out.src, "bbox", &bbox) {
		out.BBox = bbox
	}
	var poly Polygon
	if f.keep(out.src, "polygon", &poly) {
		out.Polygon = poly
	}
	if raw, ok := f["score"]; ok {
		if v, ok := scoreValue(raw); ok {
			out.Score = v
			out.src.record("score", raw, v)
			delete(f, "score")
		}
	}
	f.keep(out.src, "class_label", &out.ClassLabel)
	var shape []float64
	if f.keep(out.src, "orig_shape", &shape) {
		out.OrigShape = shape
	}
	if raw, ok := f["data"]; ok && !isNull(raw) {
		f.keep(out.src, "data", &out.Data)
	}

	out.Extra = f.extra()
	*s = out
	return nil
}

// MarshalJSON implements json.Marshaler
func (s Segment) MarshalJSON() ([]byte, error) {
	o := newObject(s.Extra, s.src)
	o.field("bbox", s.BBox, s.BBox == (BoundingBox{}))
	o.field("polygon", s.Polygon, s.Polygon.Points == nil)
	o.field("score", s.Score, s.Score == 0)
	o.field("class_label", s.ClassLabel, s.ClassLabel == "")
	o.field("orig_shape", s.OrigShape, s.OrigShape == nil)
	o.field("data", s.Data, len(s.Data) == 0)
	return o.bytes()
}

func (s Segment) isZero() bool {
	return s.BBox == (BoundingBox{}) && len(s.Polygon.Points) == 0 && s.Score == 0 &&
		s.ClassLabel == "" && s.OrigShape == nil && len(s.Data) == 0 && len(s.Extra) == 0
}

// UnmarshalJSON implements json.Unmarshaler
func (t *TextResult) UnmarshalJSON(data []byte) error {
	f, err := decodeObject(data)
	if err != nil {
		return err
	}

	out := TextResult{src: &origin{}}
	if raw, ok := f["texts"]; ok {
		if items, ok := f.array("texts"); ok {
			out.Texts = make([]string, 0, len(items))
			for _, item := range items {
				out.Texts = append(out.Texts, candidateText(item))
			}
			out.src.record("texts", raw, out.Texts)
		}
	}
	if raw, ok := f["scores"]; ok {
		if items, ok := f.array("scores"); ok {
			out.Scores = make([]float64, 0, len(items))
			for _, item := range items {
				v, _ := scoreValue(item)
				out.Scores = append(out.Scores, v)
			}
			out.src.record("scores", raw, out.Scores)
		}
	}

	out.Extra = f.extra()
	*t = out
	return nil
}

// MarshalJSON implements json.Marshaler
func (t TextResult) MarshalJSON() ([]byte, error) {
	o := newObject(t.Extra, t.src)
	if t.Texts != nil {
		o.set("texts", t.Texts)
	}
	if t.Scores != nil {
		o.set("scores", t.Scores)
	}
	return o.bytes()
}

// candidateText returns a string candidate as is and anything else as compact JSON text
func candidateText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// scoreValue accepts a JSON number or a numeric string
func scoreValue(raw json.RawMessage) (float64, bool) {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return v, true
		}
	}
	return 0, false
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}
