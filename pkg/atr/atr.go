// Package atr defines the document model returned by an Automatic Text Recognition (ATR)
// service and the codec used to read and write it.
//
// An ATR result is an ordered list of detected regions (text elements). Each element carries
// the geometry produced by the segmentation model and the candidate transcriptions produced by
// the text recognition model:
//
// Result → TextElement → (Segment, TextResult)
//
// The order of Result.Contains is the canonical document order and is preserved through every
// transformation in this module.
//
// Decoding is tolerant. Upstream output is best effort, so a malformed element never causes the
// whole document to be rejected:
//
// - A missing or non-array "contains" decodes to a nil Contains slice
// - A missing or non-array "texts" decodes to a nil TextResult.Texts slice
// - Non-string text candidates are kept as their raw JSON text
// - Scores may be numbers or numeric strings
//
// Keys this package does not know about are kept in the Extra maps and written back unchanged,
// so a result can be read, reconciled and saved without losing upstream data.
//
// Main Functions:
//
// - Parse: Decodes an ATR result from JSON
// - Confirm: Wraps a reconciled result in the save envelope
package atr
