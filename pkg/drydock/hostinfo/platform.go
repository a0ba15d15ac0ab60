package hostinfo

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// DefaultOSReleasePath is where linux distributions record their identity.
const DefaultOSReleasePath = "/etc/os-release"

// ErrUnsupportedPlatform is returned when the host distribution does not
// belong to a package ecosystem drydock knows how to drive.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

// Family groups distributions by package ecosystem. It decides whether the
// installer drives apt/dpkg or dnf/rpm.
type Family string

const (
	// FamilyDebian covers apt/dpkg based distributions.
	FamilyDebian Family = "debian"
	// FamilyRHEL covers dnf/rpm based distributions.
	FamilyRHEL Family = "rhel"
)

// Platform describes the host distribution as read from os-release.
type Platform struct {
	// ID is the lowercase distribution identifier (ubuntu, rocky, ...).
	ID string `json:"id" yaml:"id"`

	// Name is the human-readable distribution name.
	Name string `json:"name" yaml:"name"`

	// VersionID is the distribution release version, if published.
	VersionID string `json:"version_id" yaml:"version_id"`

	// Family selects the package tooling used on this host.
	Family Family `json:"family" yaml:"family"`
}

var osReleaseLine = regexp.MustCompile(`^(?P<key>\w+)=(?P<value>.+)`)

var familyByID = map[string]Family{
	"debian":    FamilyDebian,
	"ubuntu":    FamilyDebian,
	"raspbian":  FamilyDebian,
	"linuxmint": FamilyDebian,
	"pop":       FamilyDebian,
	"rhel":      FamilyRHEL,
	"centos":    FamilyRHEL,
	"fedora":    FamilyRHEL,
	"rocky":     FamilyRHEL,
	"almalinux": FamilyRHEL,
	"ol":        FamilyRHEL,
}

// DetectPlatform identifies the host distribution from the os-release file
// at path. An empty path reads DefaultOSReleasePath. Unknown distributions
// return ErrUnsupportedPlatform rather than a guess: the installer registers
// local package repositories, and the wrong ecosystem would leave the host
// with a broken package source.
func DetectPlatform(path string) (Platform, error) {
	if path == "" {
		path = DefaultOSReleasePath
	}

	release, err := parseOSRelease(path)
	if err != nil {
		return Platform{}, fmt.Errorf("read os-release: %w", err)
	}

	p := Platform{
		ID:        release["ID"],
		Name:      release["NAME"],
		VersionID: release["VERSION_ID"],
	}

	family, ok := familyByID[p.ID]
	if !ok {
		family, ok = familyFromIDLike(release["ID_LIKE"])
	}
	if !ok {
		if p.ID == "" {
			return Platform{}, fmt.Errorf("%w: %s carries no ID field", ErrUnsupportedPlatform, path)
		}
		return Platform{}, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, p.ID)
	}
	p.Family = family

	return p, nil
}

// familyFromIDLike falls back to the ID_LIKE chain for derivatives that
// publish an unrecognized ID but declare a known ancestor.
func familyFromIDLike(idLike string) (Family, bool) {
	for _, id := range strings.Fields(idLike) {
		if family, ok := familyByID[id]; ok {
			return family, true
		}
	}
	return "", false
}

func parseOSRelease(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	release := map[string]string{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if m := osReleaseLine.FindStringSubmatch(scanner.Text()); m != nil {
			release[m[1]] = strings.Trim(m[2], `"'`)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return release, nil
}
