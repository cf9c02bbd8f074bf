package enums

import "fmt"

// DocumentType identifies a rendered order document.
type DocumentType string

const (
	DocumentTypeShopPacket DocumentType = "shop_packet"
	DocumentTypeQuote      DocumentType = "quote"
)

var validDocumentTypes = []DocumentType{
	DocumentTypeShopPacket,
	DocumentTypeQuote,
}

// DocumentTypes returns the known values in declaration order.
func DocumentTypes() []DocumentType {
	out := make([]DocumentType, len(validDocumentTypes))
	copy(out, validDocumentTypes)
	return out
}

// String implements fmt.Stringer.
func (d DocumentType) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DocumentType.
func (d DocumentType) IsValid() bool {
	for _, candidate := range validDocumentTypes {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDocumentType converts raw input into a DocumentType.
func ParseDocumentType(value string) (DocumentType, error) {
	for _, candidate := range validDocumentTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid document type %q", value)
}
