package atr

import "encoding/json"

// Result is the root document returned by the ATR service for one image
type Result struct {
	FileName        string                     // Name of the source file
	ImageName       string                     // Name of the processed image
	Label           string                     // File name without extension
	Contains        []TextElement              // Recognized regions in document order (nil when missing)
	ProcessingSteps []ProcessingStep           // Pipeline steps that produced this result
	Extra           map[string]json.RawMessage // Unknown keys, passed through

	src *origin
}

// TextElement is one detected region together with its candidate transcriptions
type TextElement struct {
	Segment    Segment                    // Geometry of the region
	TextResult *TextResult                // Candidate texts, nil when missing or malformed
	Label      string                     // Region classification label
	Edited     *EditedInfo                // Set once a user edit has been reconciled
	Extra      map[string]json.RawMessage // Unknown keys, passed through

	raw json.RawMessage // Original bytes of an element that could not be decoded
	src *origin
}

// Segment is the geometry of one region as produced by the segmentation model
type Segment struct {
	BBox       BoundingBox                // Axis-aligned bounds
	Polygon    Polygon                    // Region outline
	Score      float64                    // Detection confidence in [0,1]
	ClassLabel string                     // Model class label
	OrigShape  []float64                  // Original image dimensions
	Data       json.RawMessage            // Opaque model metadata, kept verbatim
	Extra      map[string]json.RawMessage // Unknown keys, passed through

	src *origin
}

// TextResult holds candidate transcriptions as parallel arrays.
// Texts[i] corresponds to Scores[i].
type TextResult struct {
	Texts  []string                   // Candidate texts (nil when missing or not an array)
	Scores []float64                  // Candidate scores in [0,1]
	Extra  map[string]json.RawMessage // Unknown keys, passed through

	src *origin
}

// EditedInfo records a reconciled user edit
type EditedInfo struct {
	Text      string `json:"text"`      // Corrected text
	Timestamp string `json:"timestamp"` // ISO-8601 time of reconciliation
}

// ProcessingStep describes one step of the ATR pipeline
type ProcessingStep struct {
	Description string
	Settings    StepSettings
	Extra       map[string]json.RawMessage // Unknown keys, passed through

	src *origin
}

// StepSettings is the model configuration used by a processing step
type StepSettings struct {
	ModelClass       string
	Model            string
	ModelVersion     *string // nil when missing or null
	Processor        string
	ProcessorVersion string
	Extra            map[string]json.RawMessage // Unknown keys, passed through

	src *origin
}

// Confirmed is the save envelope handed to the persistence boundary
type Confirmed struct {
	Confirmed bool    `json:"confirmed"`
	Data      *Result `json:"data"`
}

// Confirm wraps a reconciled result in a confirmed save envelope
func Confirm(r *Result) Confirmed {
	return Confirmed{Confirmed: true, Data: r}
}

// Clone returns a deep copy of the result
func (r *Result) Clone() *Result {
	if r == nil {
		return nil
	}
	out := *r
	out.Extra = cloneRaw(r.Extra)
	if r.Contains != nil {
		out.Contains = make([]TextElement, len(r.Contains))
		for i, el := range r.Contains {
			out.Contains[i] = el.Clone()
		}
	}
	if r.ProcessingSteps != nil {
		out.ProcessingSteps = make([]ProcessingStep, len(r.ProcessingSteps))
		for i, step := range r.ProcessingSteps {
			out.ProcessingSteps[i] = step.Clone()
		}
	}
	return &out
}

// Clone returns a deep copy of the step
func (p ProcessingStep) Clone() ProcessingStep {
	out := p
	out.Extra = cloneRaw(p.Extra)
	out.Settings.Extra = cloneRaw(p.Settings.Extra)
	if p.Settings.ModelVersion != nil {
		v := *p.Settings.ModelVersion
		out.Settings.ModelVersion = &v
	}
	return out
}

// Clone returns a deep copy of the element
func (e TextElement) Clone() TextElement {
	out := e
	out.Segment = e.Segment.Clone()
	out.Extra = cloneRaw(e.Extra)
	if e.raw != nil {
		out.raw = append(json.RawMessage(nil), e.raw...)
	}
	if e.TextResult != nil {
		tr := *e.TextResult
		if e.TextResult.Texts != nil {
			tr.Texts = append([]string{}, e.TextResult.Texts...)
		}
		if e.TextResult.Scores != nil {
			tr.Scores = append([]float64{}, e.TextResult.Scores...)
		}
		tr.Extra = cloneRaw(e.TextResult.Extra)
		out.TextResult = &tr
	}
	if e.Edited != nil {
		ed := *e.Edited
		out.Edited = &ed
	}
	return out
}

// Clone returns a deep copy of the segment
func (s Segment) Clone() Segment {
	out := s
	out.Polygon = s.Polygon.Clone()
	if s.OrigShape != nil {
		out.OrigShape = append([]float64{}, s.OrigShape...)
	}
	if s.Data != nil {
		out.Data = append(json.RawMessage(nil), s.Data...)
	}
	out.Extra = cloneRaw(s.Extra)
	return out
}

func cloneRaw(m map[string]json.RawMessage) map[string]json.RawMessage {
	if m == nil {
		return nil
	}
	out := make(map[string]json.RawMessage, len(m))
	for k, v := range m {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}
