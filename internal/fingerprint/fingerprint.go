// Package fingerprint derives the deterministic content hashes that key the
// asset store. Identical inputs produce identical fingerprints across
// processes and operating systems, which is what makes synthesis at-most-once.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strconv"

	"reelforge/internal/profile"
)

// Audio fingerprints a synthesis request: the normalized text plus every
// voice parameter that influences the generated waveform.
func Audio(normalizedText string, v profile.Voice) string {
	h := sha256.New()
	writeField(h, normalizedText)
	writeField(h, v.VoiceID)
	writeField(h, v.ModelID)
	writeFloat(h, v.Settings.Stability)
	writeFloat(h, v.Settings.SimilarityBoost)
	writeFloat(h, v.Settings.Style)
	writeBool(h, v.Settings.UseSpeakerBoost)
	return hex.EncodeToString(h.Sum(nil))
}

// Video fingerprints a render request: the audio fingerprint plus every
// avatar parameter that influences the rendered frames.
func Video(audioFingerprint string, a profile.Avatar) string {
	h := sha256.New()
	writeField(h, audioFingerprint)
	writeField(h, a.AvatarID)
	writeField(h, strconv.Itoa(a.Width))
	writeField(h, strconv.Itoa(a.Height))
	writeField(h, a.BackgroundColor)
	return hex.EncodeToString(h.Sum(nil))
}

// Fields are length-prefixed so adjacent values can never alias.
func writeField(w io.Writer, s string) {
	io.WriteString(w, strconv.Itoa(len(s)))
	w.Write([]byte{':'})
	io.WriteString(w, s)
}

// Floats are serialized with fixed precision so the hash does not depend on
// platform-specific formatting.
func writeFloat(w io.Writer, f float64) {
	writeField(w, strconv.FormatFloat(f, 'f', 6, 64))
}

func writeBool(w io.Writer, b bool) {
	if b {
		writeField(w, "1")
	} else {
		writeField(w, "0")
	}
}
