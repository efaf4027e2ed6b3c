package payload

import (
	"bytes"
	"encoding/base64"
	"strings"
)

// Class tags how a finalized image buffer was interpreted.
type Class int

const (
	// ClassDirectBinary is a raw JPEG delivered as-is.
	ClassDirectBinary Class = iota
	// ClassBase64ASCII is an image that arrived as base64 text and was
	// decoded.
	ClassBase64ASCII
	// ClassOtherBinary is a recognized non-JPEG signature (PNG, GIF)
	// passed through unchanged.
	ClassOtherBinary
	// ClassRawFallback is an unrecognized buffer delivered unmodified
	// for the consumer to attempt interpretation.
	ClassRawFallback
)

func (c Class) String() string {
	switch c {
	case ClassDirectBinary:
		return "direct_binary"
	case ClassBase64ASCII:
		return "base64_ascii"
	case ClassOtherBinary:
		return "other_binary"
	default:
		return "raw_fallback"
	}
}

// Known base64 openings of supported image formats.
var base64Prefixes = []string{
	"/9j/",        // JPEG
	"iVBORw0KGgo", // PNG
	"R0lGOD",      // GIF
}

var (
	pngSignature = []byte{0x89, 0x50, 0x4E, 0x47}
	gifSignature = []byte{0x47, 0x49, 0x46}
)

// Image is the result of sniffing one finalized buffer.
type Image struct {
	Class Class
	// Data holds the bytes to hand downstream: decoded binary when the
	// input was base64, the input buffer otherwise.
	Data []byte
	// Descriptor is set when Data is JPEG.
	Descriptor *JPEGDescriptor
	// Warnings carries non-blocking validation notes.
	Warnings []string
}

// SniffImage classifies a finalized image buffer. Tiers are checked in
// order: direct JPEG, base64 text with a known image prefix, other known
// binary signature, then a fallback that strips foreign characters and
// tries base64 once more before passing the raw bytes through. A buffer
// is never rejected here; the worst case is opaque passthrough.
func SniffImage(buf []byte) Image {
	if looksLikeJPEG(buf) {
		return describeJPEG(buf, ClassDirectBinary, nil)
	}

	if looksLikeBase64Text(buf) {
		if decoded, ok := decodeBase64(strings.TrimSpace(string(buf))); ok {
			return describeDecoded(decoded)
		}
		// Fall through, the prefix lied or padding is broken.
	}

	if bytes.HasPrefix(buf, pngSignature) || bytes.HasPrefix(buf, gifSignature) {
		return Image{Class: ClassOtherBinary, Data: buf}
	}

	if cleaned := stripNonBase64(buf); len(cleaned) > 50 {
		if decoded, ok := decodeBase64(cleaned); ok {
			img := describeDecoded(decoded)
			img.Warnings = append(img.Warnings, "base64 recovered after stripping foreign characters")
			return img
		}
	}

	return Image{
		Class:    ClassRawFallback,
		Data:     buf,
		Warnings: []string{"unrecognized payload encoding, passed through"},
	}
}

func looksLikeJPEG(buf []byte) bool {
	return len(buf) >= 2 && buf[0] == 0xFF && buf[1] == 0xD8
}

// looksLikeBase64Text applies the cheap screen before any decode: ASCII
// only in the head, plausible length, and a known image prefix.
func looksLikeBase64Text(buf []byte) bool {
	if len(buf) <= 100 {
		return false
	}
	head := buf
	if len(head) > 50 {
		head = head[:50]
	}
	for _, b := range head {
		if b == 0 || b > 127 {
			return false
		}
	}
	s := string(buf)
	for _, prefix := range base64Prefixes {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}

func decodeBase64(s string) ([]byte, bool) {
	if decoded, err := base64.StdEncoding.DecodeString(s); err == nil {
		return decoded, true
	}
	// Unpadded output from a constrained sender still decodes.
	if decoded, err := base64.RawStdEncoding.DecodeString(s); err == nil {
		return decoded, true
	}
	return nil, false
}

func stripNonBase64(buf []byte) string {
	var sb strings.Builder
	sb.Grow(len(buf))
	for _, b := range buf {
		switch {
		case b >= 'A' && b <= 'Z', b >= 'a' && b <= 'z', b >= '0' && b <= '9':
			sb.WriteByte(b)
		case b == '+' || b == '/' || b == '=':
			sb.WriteByte(b)
		}
	}
	return sb.String()
}

// describeJPEG attaches the structural descriptor and folds its warnings
// into the result.
func describeJPEG(data []byte, class Class, warnings []string) Image {
	d := ScanJPEG(data)
	return Image{
		Class:      class,
		Data:       data,
		Descriptor: &d,
		Warnings:   append(warnings, d.Warnings...),
	}
}

func describeDecoded(decoded []byte) Image {
	if looksLikeJPEG(decoded) {
		return describeJPEG(decoded, ClassBase64ASCII, nil)
	}
	return Image{Class: ClassBase64ASCII, Data: decoded}
}
