package main

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	semver "github.com/blang/semver/v4"
)

//go:embed mirrors.yaml
var defaultMirrorTable []byte

type MirrorResolver struct {
	programs map[string]Program
}

func NewMirrorResolver(programs map[string]Program) *MirrorResolver {
	copied := make(map[string]Program, len(programs))
	for id, p := range programs {
		p.ID = id
		p.Mirrors = append([]string(nil), p.Mirrors...)
		copied[id] = p
	}
	return &MirrorResolver{programs: copied}
}

// Returns the mirror templates registered for a program, in priority order.
func (r *MirrorResolver) Resolve(programID string) ([]string, error) {
	p, err := r.Program(programID)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), p.Mirrors...), nil
}

func (r *MirrorResolver) Program(programID string) (Program, error) {
	p, ok := r.programs[programID]
	if !ok || len(p.Mirrors) == 0 {
		return Program{}, fmt.Errorf("%w: %q has no registered mirrors", ErrUnknownProgram, programID)
	}
	return p, nil
}

func (r *MirrorResolver) ProgramIDs() []string {
	ids := make([]string, 0, len(r.programs))
	for id := range r.programs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Expands every mirror template of a program for one version. The checksum
// location is derived from each mirror's own installer URL.
func (r *MirrorResolver) Attempts(programID string, version string) ([]MirrorAttempt, error) {
	templates, err := r.Resolve(programID)
	if err != nil {
		return nil, err
	}
	attempts := make([]MirrorAttempt, 0, len(templates))
	for i, template := range templates {
		installerURL := ExpandTemplate(template, version)
		attempts = append(attempts, MirrorAttempt{
			Index:        i,
			Template:     template,
			InstallerURL: installerURL,
			ChecksumURL:  ChecksumURL(installerURL),
		})
	}
	return attempts, nil
}

func ExpandTemplate(template string, version string) string {
	return strings.Replace(template, VERSION_PLACEHOLDER, version, 1)
}

func ValidateTemplate(template string) error {
	if n := strings.Count(template, VERSION_PLACEHOLDER); n != 1 {
		return fmt.Errorf("mirror template %q must contain %s exactly once, found %d", template, VERSION_PLACEHOLDER, n)
	}
	return nil
}

// The program ID names the staged installer file, so it must be a plain file
// name that stays inside the download directory.
func ValidateProgramID(programID string) error {
	if programID == "" {
		return fmt.Errorf("%w: no program given", ErrBadInput)
	}
	if programID == "." || programID == ".." || strings.Contains(programID, "..") {
		return fmt.Errorf("%w: program %q is not a valid name", ErrBadInput, programID)
	}
	for _, r := range programID {
		if r < 0x20 || r == 0x7f || strings.ContainsRune(`<>:"/\|?*`, r) {
			return fmt.Errorf("%w: program %q contains characters not allowed in a file name", ErrBadInput, programID)
		}
	}
	return nil
}

// The version is substituted verbatim, so it must not be able to change the
// shape of the URL it lands in.
func ValidateVersion(p Program, version string) error {
	if version == "" {
		return fmt.Errorf("%w: no version given", ErrBadInput)
	}
	if strings.ContainsAny(version, " \t\r\n/\\?#%") {
		return fmt.Errorf("%w: version %q contains characters not allowed in a version", ErrBadInput, version)
	}
	if p.VersionRange == "" {
		return nil
	}

	parsedRange, err := semver.ParseRange(p.VersionRange)
	if err != nil {
		return fmt.Errorf("version range %q of %s is invalid: %w", p.VersionRange, p.ID, err)
	}
	parsedVersion, err := semver.ParseTolerant(version)
	if err != nil {
		return fmt.Errorf("%w: version %q of %s cannot be checked against %q: %v", ErrBadInput, version, p.ID, p.VersionRange, err)
	}
	if !parsedRange(parsedVersion) {
		return fmt.Errorf("%w: version %q of %s is outside the allowed range %q", ErrBadInput, version, p.ID, p.VersionRange)
	}
	return nil
}
