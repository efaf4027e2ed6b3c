package payload

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"
)

// segment builds one marker segment with its big-endian length field.
func segment(marker byte, payload []byte) []byte {
	out := []byte{0xFF, marker, byte((len(payload) + 2) >> 8), byte(len(payload) + 2)}
	return append(out, payload...)
}

// minimalJPEG assembles a structurally complete baseline JPEG with
// scanBytes of entropy data. Not decodable by an image library, but it
// carries every segment the descriptor scan looks for.
func minimalJPEG(scanBytes int) []byte {
	img := []byte{0xFF, 0xD8}
	jfif := append([]byte("JFIF\x00"), 0x01, 0x01, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00)
	img = append(img, segment(0xE0, jfif)...)
	img = append(img, segment(0xDB, append([]byte{0x00}, make([]byte, 64)...))...)
	img = append(img, segment(0xC4, append([]byte{0x00}, make([]byte, 16)...))...)
	img = append(img, segment(0xC0, []byte{0x08, 0x00, 0x08, 0x00, 0x08, 0x01, 0x01, 0x11, 0x00})...)
	img = append(img, segment(0xDA, []byte{0x01, 0x01, 0x00, 0x00, 0x3F, 0x00})...)
	img = append(img, bytes.Repeat([]byte{0x55}, scanBytes)...)
	return append(img, 0xFF, 0xD9)
}

func TestScanCompleteJPEG(t *testing.T) {
	d := ScanJPEG(minimalJPEG(64))

	if !d.Complete() {
		t.Errorf("Expected complete descriptor, warnings: %v", d.Warnings)
	}

	if len(d.Warnings) != 0 {
		t.Errorf("Expected no warnings, got %v", d.Warnings)
	}

	want := []byte{0xD8, 0xE0, 0xDB, 0xC4, 0xC0, 0xDA, 0xD9}
	if !bytes.Equal(d.Markers, want) {
		t.Errorf("Expected markers % 02X, got % 02X", want, d.Markers)
	}
}

func TestScanMissingEOI(t *testing.T) {
	img := minimalJPEG(64)
	d := ScanJPEG(img[:len(img)-2])

	if d.HasEOI {
		t.Error("Expected missing EOI to be detected")
	}

	if d.Complete() {
		t.Error("Expected incomplete descriptor")
	}

	found := false
	for _, w := range d.Warnings {
		if strings.Contains(w, "EOI") {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected an EOI warning, got %v", d.Warnings)
	}
}

func TestScanMissingTables(t *testing.T) {
	// SOI straight to SOS, no tables defined.
	img := []byte{0xFF, 0xD8}
	img = append(img, segment(0xDA, []byte{0x01, 0x01, 0x00, 0x00, 0x3F, 0x00})...)
	img = append(img, 0x11, 0x22, 0xFF, 0xD9)

	d := ScanJPEG(img)

	if d.HasDQT || d.HasDHT || d.HasSOF {
		t.Error("Expected missing tables to be reported absent")
	}

	if !d.HasSOI || !d.HasSOS || !d.HasEOI {
		t.Error("Expected SOI, SOS and EOI to be found")
	}

	if len(d.Warnings) != 3 {
		t.Errorf("Expected 3 warnings, got %v", d.Warnings)
	}
}

func TestScanNotAJPEG(t *testing.T) {
	d := ScanJPEG([]byte("definitely not an image"))

	if d.HasSOI {
		t.Error("Expected no SOI in plain text")
	}

	if len(d.Warnings) == 0 {
		t.Error("Expected a warning for missing SOI")
	}
}

func TestScanTruncatedSegment(t *testing.T) {
	d := ScanJPEG([]byte{0xFF, 0xD8, 0xFF, 0xDB, 0x00})

	found := false
	for _, w := range d.Warnings {
		if strings.Contains(w, "truncated") {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected a truncation warning, got %v", d.Warnings)
	}
}

func TestSniffDirectBinary(t *testing.T) {
	img := minimalJPEG(600)
	result := SniffImage(img)

	if result.Class != ClassDirectBinary {
		t.Errorf("Expected direct_binary, got %s", result.Class)
	}

	if !bytes.Equal(result.Data, img) {
		t.Error("Expected data unchanged")
	}

	if result.Descriptor == nil || !result.Descriptor.HasSOI || !result.Descriptor.HasEOI {
		t.Error("Expected descriptor with SOI and EOI")
	}
}

func TestSniffIncompleteJPEGStillDelivered(t *testing.T) {
	img := minimalJPEG(600)
	img = img[:len(img)-2] // EOI lost in transit

	result := SniffImage(img)

	if result.Class != ClassDirectBinary {
		t.Errorf("Expected direct_binary, got %s", result.Class)
	}

	if len(result.Warnings) == 0 {
		t.Error("Expected structural warnings")
	}

	if !bytes.Equal(result.Data, img) {
		t.Error("Expected warnings to not block delivery")
	}
}

func TestSniffBase64JPEGRoundTrip(t *testing.T) {
	img := minimalJPEG(300)
	encoded := []byte(base64.StdEncoding.EncodeToString(img))

	if !bytes.HasPrefix(encoded, []byte("/9j/")) {
		t.Fatalf("Expected JPEG base64 to start with /9j/, got %s", encoded[:8])
	}

	result := SniffImage(encoded)

	if result.Class != ClassBase64ASCII {
		t.Errorf("Expected base64_ascii, got %s", result.Class)
	}

	if !bytes.Equal(result.Data, img) {
		t.Error("Expected decoded bytes to equal the original image")
	}

	if result.Descriptor == nil || !result.Descriptor.Complete() {
		t.Error("Expected complete descriptor on the decoded JPEG")
	}
}

func TestSniffBase64PNG(t *testing.T) {
	png := append([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, make([]byte, 100)...)
	encoded := []byte(base64.StdEncoding.EncodeToString(png))

	result := SniffImage(encoded)

	if result.Class != ClassBase64ASCII {
		t.Errorf("Expected base64_ascii, got %s", result.Class)
	}

	if !bytes.Equal(result.Data, png) {
		t.Error("Expected decoded PNG bytes")
	}

	if result.Descriptor != nil {
		t.Error("Expected no JPEG descriptor for PNG data")
	}
}

func TestSniffOtherBinary(t *testing.T) {
	png := append([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, make([]byte, 64)...)

	result := SniffImage(png)

	if result.Class != ClassOtherBinary {
		t.Errorf("Expected other_binary, got %s", result.Class)
	}

	if !bytes.Equal(result.Data, png) {
		t.Error("Expected passthrough of PNG bytes")
	}
}

func TestSniffFallbackCleansAndDecodes(t *testing.T) {
	img := minimalJPEG(300)
	encoded := base64.StdEncoding.EncodeToString(img)

	// Line breaks ahead of the prefix defeat the tier-two screen; the
	// fallback strip must still recover the image.
	var noisy strings.Builder
	noisy.WriteString("\r\n")
	for i, r := range encoded {
		if i > 0 && i%40 == 0 {
			noisy.WriteString("\r\n")
		}
		noisy.WriteRune(r)
	}

	result := SniffImage([]byte(noisy.String()))

	if result.Class != ClassBase64ASCII {
		t.Errorf("Expected base64_ascii after cleanup, got %s", result.Class)
	}

	if !bytes.Equal(result.Data, img) {
		t.Error("Expected cleaned decode to recover the original image")
	}

	warned := false
	for _, w := range result.Warnings {
		if strings.Contains(w, "stripping") {
			warned = true
		}
	}
	if !warned {
		t.Errorf("Expected a cleanup warning, got %v", result.Warnings)
	}
}

func TestSniffRawFallback(t *testing.T) {
	buf := []byte{0x00, 0x01, 0x02, 0x03, 0xFE, 0x00, 0x10}

	result := SniffImage(buf)

	if result.Class != ClassRawFallback {
		t.Errorf("Expected raw_fallback, got %s", result.Class)
	}

	if !bytes.Equal(result.Data, buf) {
		t.Error("Expected raw bytes passed through unmodified")
	}

	if len(result.Warnings) == 0 {
		t.Error("Expected a passthrough warning")
	}
}
