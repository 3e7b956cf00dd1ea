// Package packager prepares the bootstrap manifest consumed by bricks-bootstrap.
//
// It computes line-ending independent checksums of cip.py and bootstrap.py,
// points their hrefs at the upload location, adds the package repository and
// writes the JSON document. The written file is parsed back before the
// packager reports success. Optionally it also writes a settings file that
// points bricks-bootstrap at the new manifest.
package packager
