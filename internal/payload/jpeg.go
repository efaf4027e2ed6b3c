// Package payload classifies and validates finalized message buffers:
// sniffing the real encoding of an image (direct JPEG, base64 text,
// other binary, opaque), decoding base64 when detected, and computing
// structural diagnostics for JPEG and PCM data.
package payload

import (
	"bytes"
	"fmt"
)

const (
	markerSOF0 = 0xC0 // Start Of Frame (Baseline Sequential)
	markerSOF2 = 0xC2 // Start Of Frame (Progressive)
	markerDHT  = 0xC4 // Define Huffman Table
	markerRST0 = 0xD0 // Restart markers D0-D7, standalone
	markerRST7 = 0xD7
	markerSOI  = 0xD8 // Start Of Image
	markerEOI  = 0xD9 // End Of Image
	markerSOS  = 0xDA // Start Of Scan
	markerDQT  = 0xDB // Define Quantization Table
	markerTEM  = 0x01 // Temporary, standalone
)

// JPEGDescriptor reports the structural segments found in a JPEG buffer.
// Diagnostic only: a missing table becomes a warning, never a rejection,
// since the vision model may still decode a technically incomplete
// image.
type JPEGDescriptor struct {
	HasSOI bool
	HasEOI bool
	HasDQT bool
	HasDHT bool
	HasSOF bool
	HasSOS bool
	// Markers lists the segment codes in discovery order, SOI included.
	Markers []byte
	// Warnings notes missing segments and parse oddities.
	Warnings []string
}

// Complete reports whether every segment a baseline decoder needs was
// found.
func (d JPEGDescriptor) Complete() bool {
	return d.HasSOI && d.HasEOI && d.HasDQT && d.HasDHT && d.HasSOF && d.HasSOS
}

// ScanJPEG walks the marker segments of a candidate JPEG. The walk stops
// at Start Of Scan because entropy-coded data follows; the End Of Image
// check is a suffix test at that point.
func ScanJPEG(data []byte) JPEGDescriptor {
	var d JPEGDescriptor
	if len(data) < 2 || data[0] != 0xFF || data[1] != markerSOI {
		d.Warnings = append(d.Warnings, "missing SOI marker")
		return d
	}
	d.HasSOI = true
	d.Markers = append(d.Markers, markerSOI)

	i := 2
walk:
	for i+1 < len(data) {
		if data[i] != 0xFF {
			d.Warnings = append(d.Warnings, fmt.Sprintf("expected marker at offset %d, found 0x%02x", i, data[i]))
			break
		}
		marker := data[i+1]
		if marker == 0xFF {
			// Fill byte, markers may be padded.
			i++
			continue
		}
		d.Markers = append(d.Markers, marker)

		switch {
		case marker == markerDQT:
			d.HasDQT = true
		case marker == markerDHT:
			d.HasDHT = true
		case marker >= markerSOF0 && marker <= markerSOF2:
			d.HasSOF = true
		case marker == markerSOS:
			d.HasSOS = true
			break walk
		case marker == markerEOI:
			d.HasEOI = true
			break walk
		}

		if (marker >= markerRST0 && marker <= markerRST7) || marker == markerTEM {
			// Standalone, no length field.
			i += 2
			continue
		}

		if i+3 >= len(data) {
			d.Warnings = append(d.Warnings, "truncated segment header")
			break
		}
		segLen := int(data[i+2])<<8 | int(data[i+3])
		if segLen < 2 {
			d.Warnings = append(d.Warnings, fmt.Sprintf("invalid segment length %d at offset %d", segLen, i))
			break
		}
		i += 2 + segLen
	}

	if d.HasSOS && !d.HasEOI {
		d.HasEOI = bytes.HasSuffix(data, []byte{0xFF, markerEOI})
		if d.HasEOI {
			d.Markers = append(d.Markers, markerEOI)
		}
	}

	if !d.HasEOI {
		d.Warnings = append(d.Warnings, "missing EOI marker")
	}
	if !d.HasDQT {
		d.Warnings = append(d.Warnings, "missing quantization table")
	}
	if !d.HasDHT {
		d.Warnings = append(d.Warnings, "missing Huffman table")
	}
	if !d.HasSOF {
		d.Warnings = append(d.Warnings, "missing SOF marker")
	}
	if !d.HasSOS {
		d.Warnings = append(d.Warnings, "missing SOS marker")
	}
	return d
}
