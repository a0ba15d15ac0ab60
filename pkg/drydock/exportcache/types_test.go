package exportcache

import (
	"testing"
	"time"
)

func TestEntryEncodeDecode(t *testing.T) {
	entry := &Entry{
		ImageID:       "sha256:4bcff63911fcb4448bd4fdacec207030997caf25e9bea4045fa6c8c44de311d1",
		TarballSHA256: "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08",
		SizeBytes:     52428800,
		ExportedAt:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	data, err := entry.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	var got Entry
	if err := got.Decode(data); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if got.ImageID != entry.ImageID {
		t.Errorf("ImageID mismatch: got %q", got.ImageID)
	}
	if got.TarballSHA256 != entry.TarballSHA256 {
		t.Errorf("TarballSHA256 mismatch: got %q", got.TarballSHA256)
	}
	if got.SizeBytes != entry.SizeBytes {
		t.Errorf("SizeBytes mismatch: got %d", got.SizeBytes)
	}
	if !got.ExportedAt.Equal(entry.ExportedAt) {
		t.Errorf("ExportedAt mismatch: got %v", got.ExportedAt)
	}
}

func TestMakeKeyParseKey(t *testing.T) {
	ref := "docker.io/library/nginx:1.27-alpine"
	key := MakeKey(ref)

	got, ok := ParseKey(key)
	if !ok {
		t.Fatal("ParseKey rejected a current-format key")
	}
	if got != ref {
		t.Errorf("reference mismatch: got %q, want %q", got, ref)
	}
}

func TestParseKeyRejectsOtherVersions(t *testing.T) {
	if _, ok := ParseKey([]byte("v9\x00nginx:latest")); ok {
		t.Error("ParseKey accepted a key from another format version")
	}
	if _, ok := ParseKey([]byte("garbage")); ok {
		t.Error("ParseKey accepted an unversioned key")
	}
}
