package main

import (
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"
)

// Computes the hex encoded SHA-512 digest of a file, reading it in fixed blocks.
func Digest(filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("error opening %s for checksumming: %w", filePath, err)
	}
	defer f.Close()

	hasher := sha512.New()
	buf := make([]byte, DIGEST_BLOCK_SIZE)
	if _, err := io.CopyBuffer(hasher, f, buf); err != nil {
		return "", fmt.Errorf("error checksumming %s: %w", filePath, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// Verify compares a locally computed digest with the text of a checksum
// sidecar. Only trailing whitespace of the sidecar is ignored.
func Verify(localDigest string, remoteDigestText string) bool {
	return localDigest == strings.TrimRight(remoteDigestText, " \t\r\n")
}

// ChecksumURL derives the sidecar location from an installer URL by replacing
// the file extension of its path with CHECKSUM_SUFFIX. A path without an
// extension gets the suffix appended. The escaping of the path is kept as is.
func ChecksumURL(installerURL string) string {
	u, err := url.Parse(installerURL)
	if err != nil || u.Path == "" {
		return strings.TrimSuffix(installerURL, installerExtension(installerURL)) + CHECKSUM_SUFFIX
	}
	escaped := u.EscapedPath()
	escaped = strings.TrimSuffix(escaped, installerExtension(escaped)) + CHECKSUM_SUFFIX
	unescaped, err := url.PathUnescape(escaped)
	if err != nil {
		return strings.TrimSuffix(installerURL, installerExtension(installerURL)) + CHECKSUM_SUFFIX
	}
	u.Path = unescaped
	u.RawPath = escaped
	return u.String()
}

// installerExtension returns the file extension of p, or "" when the part
// after the last dot is not letters only, as in "setup-v2.1".
func installerExtension(p string) string {
	ext := path.Ext(p)
	if len(ext) < 2 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return ""
		}
	}
	return ext
}
