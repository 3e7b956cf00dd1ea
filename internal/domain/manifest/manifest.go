package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalid is returned when a manifest payload does not match the schema.
var ErrInvalid = errors.New("invalid bootstrap manifest")

type (
	// ArtifactRef locates a remote artifact and its expected SHA-256.
	ArtifactRef struct {
		// Href is the download URL.
		Href string
		// SHA256 is the expected uppercase or lowercase hex digest.
		// Empty until resolved when the manifest omits it.
		SHA256 string
	}

	// ArtifactSet holds the two update-able scripts.
	ArtifactSet struct {
		// CipPy is the launcher script projects invoke.
		CipPy ArtifactRef
		// BootstrapPy is the bootstrap script.
		BootstrapPy ArtifactRef
	}

	// PipConfig holds the package repository settings.
	PipConfig struct {
		// PyPIRepo is the package index URL.
		PyPIRepo string
	}

	// Manifest is the resolved bootstrap manifest of a session.
	Manifest struct {
		Artifacts ArtifactSet
		Pip       PipConfig
	}
)

// HasChecksum reports whether the expected digest is known.
func (r ArtifactRef) HasChecksum() bool {
	return strings.TrimSpace(r.SHA256) != ""
}

// Wire schema of the manifest document.
type (
	// Document is the JSON root: {"bootstrap_info": {...}}.
	Document struct {
		BootstrapInfo *Info `json:"bootstrap_info"`
	}

	// Info groups the files and the pip configuration.
	Info struct {
		BootstrapFiles *Files      `json:"bootstrap_files"`
		PipConfig      *PipSection `json:"pip_config"`
	}

	// Files lists the bootstrap scripts.
	Files struct {
		CipPy       *FileRef `json:"cip_py"`
		BootstrapPy *FileRef `json:"bootstrap_py"`
	}

	// FileRef is one script entry; sha256 is optional.
	FileRef struct {
		Href   string  `json:"href"`
		SHA256 *string `json:"sha256,omitempty"`
	}

	// PipSection carries the package index URL.
	PipSection struct {
		PyPIRepo string `json:"pypi_repo"`
	}
)

// Parse decodes and validates a manifest payload. Artifacts without a
// checksum are returned with an empty SHA256.
func Parse(data []byte) (*Manifest, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	info := doc.BootstrapInfo
	if info == nil {
		return nil, fmt.Errorf("%w: missing bootstrap_info", ErrInvalid)
	}

	if info.BootstrapFiles == nil {
		return nil, fmt.Errorf("%w: missing bootstrap_info.bootstrap_files", ErrInvalid)
	}

	if info.PipConfig == nil || strings.TrimSpace(info.PipConfig.PyPIRepo) == "" {
		return nil, fmt.Errorf("%w: missing bootstrap_info.pip_config.pypi_repo", ErrInvalid)
	}

	cipPy, err := info.BootstrapFiles.CipPy.ref("cip_py")
	if err != nil {
		return nil, err
	}

	bootstrapPy, err := info.BootstrapFiles.BootstrapPy.ref("bootstrap_py")
	if err != nil {
		return nil, err
	}

	return &Manifest{
		Artifacts: ArtifactSet{
			CipPy:       cipPy,
			BootstrapPy: bootstrapPy,
		},
		Pip: PipConfig{
			PyPIRepo: strings.TrimSpace(info.PipConfig.PyPIRepo),
		},
	}, nil
}

// Encode renders m in the wire schema, omitting unknown checksums.
func Encode(m *Manifest) ([]byte, error) {
	doc := Document{
		BootstrapInfo: &Info{
			BootstrapFiles: &Files{
				CipPy:       toFileRef(m.Artifacts.CipPy),
				BootstrapPy: toFileRef(m.Artifacts.BootstrapPy),
			},
			PipConfig: &PipSection{PyPIRepo: m.Pip.PyPIRepo},
		},
	}

	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}

	return append(data, '\n'), nil
}

// ref converts a wire entry, rejecting missing entries and empty hrefs.
func (f *FileRef) ref(name string) (ArtifactRef, error) {
	if f == nil {
		return ArtifactRef{}, fmt.Errorf("%w: missing bootstrap_files.%s", ErrInvalid, name)
	}

	href := strings.TrimSpace(f.Href)
	if href == "" {
		return ArtifactRef{}, fmt.Errorf("%w: empty href for %s", ErrInvalid, name)
	}

	var sum string
	if f.SHA256 != nil {
		sum = strings.TrimSpace(*f.SHA256)
	}

	return ArtifactRef{Href: href, SHA256: sum}, nil
}

func toFileRef(r ArtifactRef) *FileRef {
	ref := &FileRef{Href: r.Href}
	if r.HasChecksum() {
		sum := r.SHA256
		ref.SHA256 = &sum
	}

	return ref
}
