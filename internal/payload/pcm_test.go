package payload

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestPCMDuration(t *testing.T) {
	if d := PCMDuration(32000); d != time.Second {
		t.Errorf("Expected 1s for 32000 bytes, got %s", d)
	}

	if d := PCMDuration(16000); d != 500*time.Millisecond {
		t.Errorf("Expected 500ms for 16000 bytes, got %s", d)
	}

	if d := PCMDuration(0); d != 0 {
		t.Errorf("Expected 0 for empty buffer, got %s", d)
	}
}

func TestValidateClip(t *testing.T) {
	pcm := bytes.Repeat([]byte{0x01, 0x00}, SampleRate) // one second
	clip := ValidateClip(pcm)

	if clip.Duration != time.Second {
		t.Errorf("Expected 1s clip, got %s", clip.Duration)
	}

	if clip.SampleRate != SampleRate {
		t.Errorf("Expected sample rate %d, got %d", SampleRate, clip.SampleRate)
	}

	if len(clip.Warnings) != 0 {
		t.Errorf("Expected no warnings, got %v", clip.Warnings)
	}

	if !bytes.Equal(clip.Data, pcm) {
		t.Error("Expected clip bytes unchanged")
	}
}

func TestValidateClipShortWarns(t *testing.T) {
	clip := ValidateClip(bytes.Repeat([]byte{0x01, 0x00}, 100))

	if len(clip.Warnings) == 0 {
		t.Fatal("Expected a short-clip warning")
	}

	if !strings.Contains(clip.Warnings[0], "shorter") {
		t.Errorf("Expected shorter-than warning, got %v", clip.Warnings)
	}

	// Soft warning only; the bytes still go downstream.
	if len(clip.Data) != 200 {
		t.Error("Expected clip data preserved")
	}
}

func TestValidateClipOddByteCount(t *testing.T) {
	clip := ValidateClip(make([]byte, 32001))

	found := false
	for _, w := range clip.Warnings {
		if strings.Contains(w, "odd byte count") {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected odd byte count warning, got %v", clip.Warnings)
	}
}
