package gdocai

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"

	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// ErrNoImage is returned for pages that carry no rendered image
var ErrNoImage = errors.New("no image in Document AI page")

// ToJSON renders v as indented JSON. Protocol buffer messages use the protojson field
// names so the output can be read back with FromJSON.
func ToJSON(v any) ([]byte, error) {
	if msg, ok := v.(proto.Message); ok {
		return protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(msg)
	}
	return json.MarshalIndent(v, "", "  ")
}

// FromJSON decodes a Document proto saved with ToJSON
func FromJSON(data []byte) (*documentaipb.Document, error) {
	doc := &documentaipb.Document{}
	if err := (protojson.UnmarshalOptions{DiscardUnknown: true}).Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("failed to decode Document AI JSON: %w", err)
	}
	return doc, nil
}

// ExtractImageFromPage returns the image bytes of a Document AI page
func ExtractImageFromPage(page *documentaipb.Document_Page) ([]byte, error) {
	data, _, err := PageImage(page)
	return data, err
}

// PageImage returns the image of a page together with a file extension for its MIME type
// (".png" when the type is unknown)
func PageImage(page *documentaipb.Document_Page) ([]byte, string, error) {
	content := page.GetImage().GetContent()
	if len(content) == 0 {
		return nil, "", ErrNoImage
	}
	return content, imageExtension(page.GetImage().GetMimeType()), nil
}

func imageExtension(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/tiff":
		return ".tif"
	case "", "image/png":
		return ".png"
	}
	if exts, _ := mime.ExtensionsByType(mimeType); len(exts) > 0 {
		return exts[0]
	}
	return ".png"
}
