// Package debfile reads the identity of a Debian binary package straight
// from the .deb archive. A .deb is a Unix ar archive whose control.tar
// member carries the control paragraph with the package name, version and
// architecture.
package debfile

import (
	"archive/tar"
	"bufio"
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/ulikunitz/xz"
	"golang.org/x/xerrors"

	"github.com/rotty/deb-audit/pkg/types"
)

var ErrFormat = xerrors.New("malformed deb archive")

const (
	arMagic       = "!<arch>\n"
	arHeaderSize  = 60
	debianVersion = "2.0"
)

// Read parses the .deb archive at path and returns the package identity
// from its control paragraph.
func Read(filePath string) (types.Package, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return types.Package{}, xerrors.Errorf("failed to open %s: %w", filePath, err)
	}
	defer f.Close()

	pkg, err := Parse(f)
	if err != nil {
		return types.Package{}, xerrors.Errorf("%s: %w", filePath, err)
	}
	return pkg, nil
}

// Parse reads a .deb archive from r. The debian-binary member must declare
// format 2.0 and the control.tar member may be uncompressed, gzip or xz
// compressed.
func Parse(r io.Reader) (types.Package, error) {
	br := bufio.NewReader(r)

	magic := make([]byte, len(arMagic))
	if _, err := io.ReadFull(br, magic); err != nil {
		return types.Package{}, xerrors.Errorf("%w: missing ar magic: %v", ErrFormat, err)
	}
	if string(magic) != arMagic {
		return types.Package{}, xerrors.Errorf("%w: not an ar archive", ErrFormat)
	}

	seenFormat := false
	for {
		name, size, err := readMemberHeader(br)
		if err == io.EOF {
			break
		}
		if err != nil {
			return types.Package{}, err
		}
		member := io.LimitReader(br, size)

		switch {
		case name == "debian-binary":
			b, err := io.ReadAll(member)
			if err != nil {
				return types.Package{}, xerrors.Errorf("%w: debian-binary member: %v", ErrFormat, err)
			}
			if strings.TrimSpace(string(b)) != debianVersion {
				return types.Package{}, xerrors.Errorf("%w: unsupported format %q", ErrFormat, strings.TrimSpace(string(b)))
			}
			seenFormat = true
		case strings.HasPrefix(name, "control.tar"):
			if !seenFormat {
				return types.Package{}, xerrors.Errorf("%w: control.tar before debian-binary", ErrFormat)
			}
			return readControl(name, member)
		default:
			if _, err := io.Copy(io.Discard, member); err != nil {
				return types.Package{}, xerrors.Errorf("%w: member %s: %v", ErrFormat, name, err)
			}
		}

		// ar pads members to even offsets.
		if size%2 == 1 {
			if _, err := br.Discard(1); err != nil {
				return types.Package{}, xerrors.Errorf("%w: truncated padding: %v", ErrFormat, err)
			}
		}
	}
	return types.Package{}, xerrors.Errorf("%w: no control.tar member", ErrFormat)
}

// readMemberHeader consumes one 60 byte ar member header and returns the
// member name and size.
func readMemberHeader(br *bufio.Reader) (string, int64, error) {
	header := make([]byte, arHeaderSize)
	if _, err := io.ReadFull(br, header); err != nil {
		if err == io.EOF {
			return "", 0, io.EOF
		}
		return "", 0, xerrors.Errorf("%w: truncated member header: %v", ErrFormat, err)
	}
	if !bytes.Equal(header[58:60], []byte("`\n")) {
		return "", 0, xerrors.Errorf("%w: bad member header terminator", ErrFormat)
	}

	name := strings.TrimRight(string(header[0:16]), " ")
	name = strings.TrimSuffix(name, "/") // GNU ar style
	size, err := strconv.ParseInt(strings.TrimSpace(string(header[48:58])), 10, 64)
	if err != nil || size < 0 {
		return "", 0, xerrors.Errorf("%w: bad member size for %s", ErrFormat, name)
	}
	return name, size, nil
}

func readControl(name string, r io.Reader) (types.Package, error) {
	var err error
	switch path.Ext(name) {
	case ".tar":
	case ".gz":
		r, err = gzip.NewReader(r)
		if err != nil {
			return types.Package{}, xerrors.Errorf("%w: %s: %v", ErrFormat, name, err)
		}
	case ".xz":
		r, err = xz.NewReader(r)
		if err != nil {
			return types.Package{}, xerrors.Errorf("%w: %s: %v", ErrFormat, name, err)
		}
	default:
		return types.Package{}, xerrors.Errorf("%w: unsupported compression in %s", ErrFormat, name)
	}

	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return types.Package{}, xerrors.Errorf("%w: %s: %v", ErrFormat, name, err)
		}
		if path.Clean(hdr.Name) != "control" {
			continue
		}
		b, err := io.ReadAll(tr)
		if err != nil {
			return types.Package{}, xerrors.Errorf("%w: control file: %v", ErrFormat, err)
		}
		return parseControl(b)
	}
	return types.Package{}, xerrors.Errorf("%w: no control file in %s", ErrFormat, name)
}

// parseControl extracts the identity fields from the first paragraph of a
// Debian control file. Continuation lines belong to the preceding field and
// are irrelevant here.
func parseControl(data []byte) (types.Package, error) {
	var pkg types.Package
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			break
		}
		if line[0] == ' ' || line[0] == '\t' {
			continue
		}
		field, value, ok := strings.Cut(line, ":")
		if !ok {
			return types.Package{}, xerrors.Errorf("%w: bad control line %q", ErrFormat, line)
		}
		value = strings.TrimSpace(value)
		switch field {
		case "Package":
			pkg.Name = value
		case "Version":
			pkg.Version = value
		case "Architecture":
			pkg.Architecture = value
		}
	}
	if err := scanner.Err(); err != nil {
		return types.Package{}, xerrors.Errorf("%w: control file: %v", ErrFormat, err)
	}

	if pkg.Name == "" || pkg.Version == "" || pkg.Architecture == "" {
		return types.Package{}, xerrors.Errorf("%w: control paragraph lacks Package, Version or Architecture", ErrFormat)
	}
	return pkg, nil
}
