package hostinfo

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeOSRelease(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "os-release")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestDetectPlatform(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    Platform
	}{
		{
			name: "ubuntu",
			content: `NAME="Ubuntu"
VERSION="22.04.3 LTS (Jammy Jellyfish)"
ID=ubuntu
ID_LIKE=debian
VERSION_ID="22.04"
`,
			want: Platform{ID: "ubuntu", Name: "Ubuntu", VersionID: "22.04", Family: FamilyDebian},
		},
		{
			name: "debian",
			content: `PRETTY_NAME="Debian GNU/Linux 12 (bookworm)"
NAME="Debian GNU/Linux"
VERSION_ID="12"
ID=debian
`,
			want: Platform{ID: "debian", Name: "Debian GNU/Linux", VersionID: "12", Family: FamilyDebian},
		},
		{
			name: "rocky",
			content: `NAME="Rocky Linux"
VERSION="9.3 (Blue Onyx)"
ID="rocky"
ID_LIKE="rhel centos fedora"
VERSION_ID="9.3"
`,
			want: Platform{ID: "rocky", Name: "Rocky Linux", VersionID: "9.3", Family: FamilyRHEL},
		},
		{
			name: "derivative known only through ID_LIKE",
			content: `NAME="Zorin OS"
ID=zorin
ID_LIKE="ubuntu debian"
VERSION_ID="17"
`,
			want: Platform{ID: "zorin", Name: "Zorin OS", VersionID: "17", Family: FamilyDebian},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeOSRelease(t, tt.content)

			got, err := DetectPlatform(path)
			if err != nil {
				t.Fatalf("DetectPlatform() returned error: %v", err)
			}
			if got != tt.want {
				t.Errorf("DetectPlatform() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDetectPlatform_Unsupported(t *testing.T) {
	path := writeOSRelease(t, `NAME="Alpine Linux"
ID=alpine
VERSION_ID=3.19.0
`)

	_, err := DetectPlatform(path)
	if err == nil {
		t.Fatal("DetectPlatform() = nil error, want ErrUnsupportedPlatform")
	}
	if !errors.Is(err, ErrUnsupportedPlatform) {
		t.Errorf("DetectPlatform() error = %v, want ErrUnsupportedPlatform", err)
	}
}

func TestDetectPlatform_MissingFile(t *testing.T) {
	_, err := DetectPlatform(filepath.Join(t.TempDir(), "does-not-exist"))
	if err == nil {
		t.Fatal("DetectPlatform() = nil error, want read failure")
	}
}

func TestDetectPlatform_EmptyFile(t *testing.T) {
	path := writeOSRelease(t, "")

	_, err := DetectPlatform(path)
	if !errors.Is(err, ErrUnsupportedPlatform) {
		t.Errorf("DetectPlatform() error = %v, want ErrUnsupportedPlatform", err)
	}
}
