package debfile_test

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
	"golang.org/x/xerrors"

	"github.com/rotty/deb-audit/pkg/debfile"
	"github.com/rotty/deb-audit/pkg/types"
)

const zlibControl = `Package: zlib1g
Source: zlib
Version: 1:1.2.11.dfsg-1
Architecture: amd64
Maintainer: Mark Brown <broonie@debian.org>
Description: compression library - runtime
 zlib is a library implementing the deflate compression method.
`

func arMember(t *testing.T, buf *bytes.Buffer, name string, data []byte) {
	t.Helper()
	_, err := fmt.Fprintf(buf, "%-16s%-12d%-6d%-6d%-8s%-10d`\n", name, 0, 0, 0, "100644", len(data))
	require.NoError(t, err)
	buf.Write(data)
	if len(data)%2 == 1 {
		buf.WriteByte('\n')
	}
}

func controlTar(t *testing.T, control string) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name: "./control",
		Mode: 0644,
		Size: int64(len(control)),
	}))
	_, err := tw.Write([]byte(control))
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	return buf.Bytes()
}

func gzipped(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func xzipped(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	xw, err := xz.NewWriter(&buf)
	require.NoError(t, err)
	_, err = xw.Write(data)
	require.NoError(t, err)
	require.NoError(t, xw.Close())
	return buf.Bytes()
}

func buildDeb(t *testing.T, controlMember string, controlData []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("!<arch>\n")
	arMember(t, &buf, "debian-binary", []byte("2.0\n"))
	arMember(t, &buf, controlMember, controlData)
	arMember(t, &buf, "data.tar.xz", []byte("irrelevant"))
	return buf.Bytes()
}

func TestParse(t *testing.T) {
	want := types.Package{
		Name:         "zlib1g",
		Version:      "1:1.2.11.dfsg-1",
		Architecture: "amd64",
	}

	tests := []struct {
		name    string
		member  string
		data    func(t *testing.T) []byte
		want    types.Package
		wantErr string
	}{
		{
			name:   "gzip control",
			member: "control.tar.gz",
			data:   func(t *testing.T) []byte { return gzipped(t, controlTar(t, zlibControl)) },
			want:   want,
		},
		{
			name:   "xz control",
			member: "control.tar.xz",
			data:   func(t *testing.T) []byte { return xzipped(t, controlTar(t, zlibControl)) },
			want:   want,
		},
		{
			name:   "uncompressed control",
			member: "control.tar",
			data:   func(t *testing.T) []byte { return controlTar(t, zlibControl) },
			want:   want,
		},
		{
			name:    "unsupported compression",
			member:  "control.tar.zst",
			data:    func(t *testing.T) []byte { return []byte("whatever") },
			wantErr: "unsupported compression",
		},
		{
			name:    "incomplete control paragraph",
			member:  "control.tar.gz",
			data:    func(t *testing.T) []byte { return gzipped(t, controlTar(t, "Package: zlib1g\n")) },
			wantErr: "lacks Package, Version or Architecture",
		},
		{
			name:    "no control file in tarball",
			member:  "control.tar.gz",
			data:    func(t *testing.T) []byte { return gzipped(t, controlTar(t, zlibControl)[:0]) },
			wantErr: "no control file",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := debfile.Parse(bytes.NewReader(buildDeb(t, tt.member, tt.data(t))))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, xerrors.Is(err, debfile.ErrFormat))
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_NotAnArchive(t *testing.T) {
	_, err := debfile.Parse(bytes.NewReader([]byte("PK\x03\x04 this is a zip")))
	require.Error(t, err)
	assert.True(t, xerrors.Is(err, debfile.ErrFormat))
}

func TestParse_UnsupportedFormatVersion(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("!<arch>\n")
	arMember(t, &buf, "debian-binary", []byte("3.0\n"))
	arMember(t, &buf, "control.tar.gz", gzipped(t, controlTar(t, zlibControl)))

	_, err := debfile.Parse(&buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")
}

func TestParse_MissingControlMember(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("!<arch>\n")
	arMember(t, &buf, "debian-binary", []byte("2.0\n"))
	arMember(t, &buf, "data.tar.xz", []byte("irrelevant"))

	_, err := debfile.Parse(&buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no control.tar member")
}

// Members of odd size are padded to even offsets; the parser must skip the
// padding before reading the next header.
func TestParse_OddSizedMember(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("!<arch>\n")
	arMember(t, &buf, "debian-binary", []byte("2.0\n"))
	arMember(t, &buf, "_ignored", []byte("odd"))
	arMember(t, &buf, "control.tar.gz", gzipped(t, controlTar(t, zlibControl)))

	got, err := debfile.Parse(&buf)
	require.NoError(t, err)
	assert.Equal(t, "zlib1g", got.Name)
}

func TestRead(t *testing.T) {
	dir := t.TempDir()
	debPath := filepath.Join(dir, "zlib1g_1.2.11_amd64.deb")
	require.NoError(t, os.WriteFile(debPath,
		buildDeb(t, "control.tar.gz", gzipped(t, controlTar(t, zlibControl))), 0644))

	got, err := debfile.Read(debPath)
	require.NoError(t, err)
	assert.Equal(t, types.Package{
		Name:         "zlib1g",
		Version:      "1:1.2.11.dfsg-1",
		Architecture: "amd64",
	}, got)

	_, err = debfile.Read(filepath.Join(dir, "nope.deb"))
	require.Error(t, err)
}
