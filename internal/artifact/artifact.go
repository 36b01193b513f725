package artifact

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrTransfer is returned when the tarball could not be staged.
var ErrTransfer = errors.New("artifact transfer failed")

// Artifact identifies an installer tarball and where it lives.
type Artifact struct {
	Version  string
	Platform string
	Filename string
	URL      string
	// MirrorKey is the object key in an S3 mirror.
	MirrorKey string
}

// Filename returns the tarball name for a version and platform.
func Filename(version, platform string) string {
	return fmt.Sprintf("puppet-enterprise-%s-%s.tar.gz", version, platform)
}

// New builds the artifact for a version and platform under releaseURL.
func New(releaseURL, version, platform string) Artifact {
	name := Filename(version, platform)
	return Artifact{
		Version:   version,
		Platform:  platform,
		Filename:  name,
		URL:       strings.TrimRight(releaseURL, "/") + "/" + version + "/" + name,
		MirrorKey: path.Join(version, name),
	}
}

// RemotePath returns where the tarball is placed on targets.
func (a Artifact) RemotePath(uploadDir string) string {
	return path.Join(uploadDir, a.Filename)
}
