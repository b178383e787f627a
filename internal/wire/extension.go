package wire

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// Extension is one opaque extension block. The SMP stores extensions as
// a JSON array of these and never interprets the carried XML.
type Extension struct {
	Any string `json:"Any"`
}

// StoreExtensionXML converts raw extension XML from a wire payload into
// the stored JSON form. The fragment may contain several sibling
// elements; each becomes one block. Returns "" for an empty fragment
// and an error when the fragment is not well formed.
func StoreExtensionXML(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromString("<x>" + raw + "</x>"); err != nil {
		return "", fmt.Errorf("parsing extension content: %w", err)
	}

	var exts []Extension
	for _, el := range doc.Root().ChildElements() {
		frag := etree.NewDocument()
		frag.AddChild(el.Copy())
		s, err := frag.WriteToString()
		if err != nil {
			return "", fmt.Errorf("serializing extension element: %w", err)
		}
		exts = append(exts, Extension{Any: strings.TrimSpace(s)})
	}
	if len(exts) == 0 {
		return "", nil
	}

	data, err := json.Marshal(exts)
	if err != nil {
		return "", fmt.Errorf("encoding extensions: %w", err)
	}
	return string(data), nil
}

// ExtensionXML converts the stored JSON form back into raw XML for a
// wire payload: the blocks concatenated in stored order. Returns "" for
// an empty stored value.
func ExtensionXML(stored string) (string, error) {
	exts, err := ParseExtensions(stored)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, ext := range exts {
		b.WriteString(ext.Any)
	}
	return b.String(), nil
}

// ParseExtensions decodes the stored JSON form
func ParseExtensions(stored string) ([]Extension, error) {
	if stored == "" {
		return nil, nil
	}
	var exts []Extension
	if err := json.Unmarshal([]byte(stored), &exts); err != nil {
		return nil, fmt.Errorf("decoding stored extensions: %w", err)
	}
	return exts, nil
}
