package extract

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/binarysniffer/binarysniffer/pkg/errors"
	"github.com/binarysniffer/binarysniffer/pkg/model"
)

// archiveMember is one file inside an archive, held in memory for the
// duration of its own extraction pass. Members are capped by
// Options.MaxArchiveMembers and MaxFeatures upstream.
type archiveMember struct {
	name string
	data []byte
}

// walkArchive dispatches path's contents by archive kind, recurses into
// nested archives under opts.MaxDepth, and feeds every leaf back through
// the extractors registered for its sniffed type. Members are visited in
// lexicographic order by archive-relative path.
func walkArchive(ctx context.Context, filePath string, kind model.FileType, opts Options, depth int, c *collector) error {
	if depth > opts.MaxDepth {
		return nil
	}

	f, err := os.Open(filePath)
	if err != nil {
		return errors.New(errors.KindIO, filePath, err)
	}
	defer f.Close()

	var members []archiveMember
	switch kind {
	case model.FileTypeZip:
		members, err = readZip(f)
	case model.FileTypeZstd:
		members, err = readZstd(f)
	case model.FileTypeDeb:
		members, err = readAR(f)
	case model.FileTypeCPIO:
		members, err = readCpioNewc(f)
	default:
		members, err = readTarLike(f)
	}
	if err != nil {
		return err
	}

	if depth == 0 && kind == model.FileTypeZip && len(members) == 1 {
		if model.IsNativeContainer(Sniff(members[0].data, members[0].name)) {
			c.nativeContainer = true
		}
	}

	sort.Slice(members, func(i, j int) bool { return members[i].name < members[j].name })

	if len(members) > opts.MaxArchiveMembers {
		members = members[:opts.MaxArchiveMembers]
	}

	for _, m := range members {
		select {
		case <-ctx.Done():
			return errors.New(errors.KindTimeout, filePath, ctx.Err())
		default:
		}

		if manifestFeatures, ok := parseManifest(m.name, m.data); ok {
			for _, mf := range manifestFeatures {
				if !c.add(mf) {
					return nil
				}
			}
			continue
		}

		memberKind := Sniff(m.data, m.name)
		if isArchiveKind(memberKind) && depth < opts.MaxDepth {
			if err := extractNestedMember(ctx, m, memberKind, opts, depth, c); err != nil {
				continue // FormatError on one nested member does not abort the walk
			}
			continue
		}

		if err := extractMemberBytes(m, memberKind, c); err != nil {
			continue
		}
		if c.full() {
			return nil
		}
	}
	return nil
}

func isArchiveKind(k model.FileType) bool {
	switch k {
	case model.FileTypeZip, model.FileTypeTar, model.FileTypeZstd, model.FileTypeDeb, model.FileTypeCPIO:
		return true
	}
	return false
}

// extractNestedMember spills a nested archive member to a temp file so it
// can be re-walked by walkArchive, which operates on paths (needed for
// zip's io.ReaderAt requirement and for keeping memory bounded).
func extractNestedMember(ctx context.Context, m archiveMember, kind model.FileType, opts Options, depth int, c *collector) error {
	tmp, err := os.CreateTemp("", "binarysniffer-nested-*")
	if err != nil {
		return errors.New(errors.KindIO, m.name, err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if _, err := tmp.Write(m.data); err != nil {
		return errors.New(errors.KindIO, m.name, err)
	}
	if _, err := tmp.Seek(0, 0); err != nil {
		return errors.New(errors.KindIO, m.name, err)
	}
	return walkArchive(ctx, tmp.Name(), kind, opts, depth+1, c)
}

// extractMemberBytes runs the ordinary extractors over a member's bytes
// and folds the resulting features into c, tagging each with m.name as its
// source path so the matcher can surface which archive entry produced a
// hit. The feature text itself is left exactly as the underlying extractor
// produced it — no path is baked into the string, so a symbol pulled out
// of an archive member still exact-matches the same stored pattern a
// top-level binary would.
func extractMemberBytes(m archiveMember, kind model.FileType, c *collector) error {
	r := bytes.NewReader(m.data)
	switch kind {
	case model.FileTypeELF, model.FileTypePE, model.FileTypeMachO, model.FileTypeAR, model.FileTypeDEX:
		tmp, err := os.CreateTemp("", "binarysniffer-member-*")
		if err != nil {
			return errors.New(errors.KindIO, m.name, err)
		}
		defer os.Remove(tmp.Name())
		defer tmp.Close()
		if _, err := tmp.Write(m.data); err != nil {
			return errors.New(errors.KindIO, m.name, err)
		}
		tmp.Seek(0, 0)
		sub := newCollector(c.cap - len(c.features))
		if err := extractSymbols(tmp, kind, sub); err != nil {
			return err
		}
		for _, feat := range sub.features {
			if !c.addWithSource(feat, m.name) {
				return nil
			}
		}
	default:
		sub := newCollector(c.cap - len(c.features))
		if err := scanStrings(r, sub); err != nil {
			return err
		}
		for _, feat := range sub.features {
			if !c.addWithSource(feat, m.name) {
				return nil
			}
		}
	}
	return nil
}

func readZip(f *os.File) ([]archiveMember, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, errors.New(errors.KindIO, f.Name(), err)
	}
	zr, err := zip.NewReader(f, info.Size())
	if err != nil {
		return nil, errors.New(errors.KindFormat, f.Name(), err)
	}
	var out []archiveMember
	for _, zf := range zr.File {
		if zf.FileInfo().IsDir() {
			continue
		}
		rc, err := zf.Open()
		if err != nil {
			continue
		}
		data, err := io.ReadAll(io.LimitReader(rc, 32<<20))
		rc.Close()
		if err != nil {
			continue
		}
		out = append(out, archiveMember{name: path.Clean(zf.Name), data: data})
	}
	return out, nil
}

func readZstd(f *os.File) ([]archiveMember, error) {
	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, errors.New(errors.KindFormat, f.Name(), err)
	}
	defer zr.Close()
	data, err := io.ReadAll(io.LimitReader(zr, 128<<20))
	if err != nil {
		return nil, errors.New(errors.KindFormat, f.Name(), err)
	}
	if tr := tryTarReader(bytes.NewReader(data)); tr != nil {
		return readTarEntries(tr)
	}
	return []archiveMember{{name: "payload", data: data}}, nil
}

// readTarLike handles a tar stream that may be wrapped in gzip or bzip2,
// falling back to a bare tar stream.
func readTarLike(f *os.File) ([]archiveMember, error) {
	header := make([]byte, 4)
	if _, err := f.Read(header); err != nil {
		return nil, errors.New(errors.KindIO, f.Name(), err)
	}
	f.Seek(0, 0)

	var r io.Reader = f
	switch {
	case header[0] == 0x1f && header[1] == 0x8b:
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, errors.New(errors.KindFormat, f.Name(), err)
		}
		defer gz.Close()
		r = gz
	case string(header[:3]) == "BZh":
		r = bzip2.NewReader(f)
	}

	tr := tryTarReader(r)
	if tr == nil {
		return nil, errors.New(errors.KindFormat, f.Name(), fmt.Errorf("not a tar stream"))
	}
	return readTarEntries(tr)
}

func tryTarReader(r io.Reader) *tar.Reader {
	tr := tar.NewReader(r)
	return tr
}

// readAR walks a ".deb"'s outer "!<arch>\n" container by hand, the same
// fixed 60-byte member headers extractAR parses for static libraries.
// Its members (debian-binary, control.tar.*, data.tar.*) are handed back
// as opaque bytes; walkArchive re-sniffs each one, so the already-gzip-
// and tar-aware code recurses into them without any format-specific
// handling here.
func readAR(f *os.File) ([]archiveMember, error) {
	if _, err := f.Seek(8, 0); err != nil { // skip "!<arch>\n"
		return nil, errors.New(errors.KindIO, f.Name(), err)
	}
	var out []archiveMember
	header := make([]byte, 60)
	for {
		n, err := io.ReadFull(f, header)
		if n < 60 || err != nil {
			break
		}
		name := strings.TrimRight(string(header[0:16]), " ")
		name = strings.TrimSuffix(name, "/")
		size, convErr := strconv.ParseInt(strings.TrimSpace(string(header[48:58])), 10, 64)
		if convErr != nil || size < 0 {
			break
		}

		data := make([]byte, size)
		if _, err := io.ReadFull(f, data); err != nil {
			break
		}
		if name != "" && name != "/" && name != "//" {
			out = append(out, archiveMember{name: name, data: data})
		}

		if size%2 == 1 { // members are 2-byte aligned
			f.Seek(1, 1)
		}
	}
	return out, nil
}

// readCpioNewc parses the "newc"/"newc+crc" ASCII cpio format: a 110-byte
// hex-ASCII header, a NUL-terminated filename, and the file body, each of
// the latter two padded to a 4-byte boundary. The end of the archive is
// marked by a member named "TRAILER!!!". The older "070707" odc format
// uses a different, unpadded layout and is not handled.
func readCpioNewc(f *os.File) ([]archiveMember, error) {
	var out []archiveMember
	header := make([]byte, 110)
	for {
		if _, err := io.ReadFull(f, header); err != nil {
			break
		}
		if string(header[0:6]) != "070701" && string(header[0:6]) != "070702" {
			return out, errors.New(errors.KindFormat, f.Name(), fmt.Errorf("unsupported cpio header magic %q", header[0:6]))
		}
		fileSize, err1 := strconv.ParseInt(string(header[54:62]), 16, 64)
		nameSize, err2 := strconv.ParseInt(string(header[94:102]), 16, 64)
		if err1 != nil || err2 != nil {
			return out, errors.New(errors.KindFormat, f.Name(), fmt.Errorf("malformed cpio header"))
		}

		nameBuf := make([]byte, nameSize)
		if _, err := io.ReadFull(f, nameBuf); err != nil {
			break
		}
		name := strings.TrimRight(string(nameBuf), "\x00")
		if err := cpioSkipPad(f, 110+nameSize); err != nil {
			break
		}

		if name == "TRAILER!!!" {
			break
		}

		data := make([]byte, fileSize)
		if _, err := io.ReadFull(f, data); err != nil {
			break
		}
		if err := cpioSkipPad(f, fileSize); err != nil {
			break
		}
		out = append(out, archiveMember{name: path.Clean(name), data: data})
	}
	return out, nil
}

// cpioSkipPad advances past the zero padding that rounds a preceding
// section of length n up to a 4-byte boundary.
func cpioSkipPad(f *os.File, n int64) error {
	if pad := (4 - n%4) % 4; pad > 0 {
		if _, err := f.Seek(pad, 1); err != nil {
			return err
		}
	}
	return nil
}

func readTarEntries(tr *tar.Reader) ([]archiveMember, error) {
	var out []archiveMember
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return out, errors.New(errors.KindFormat, "tar entry", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		data, err := io.ReadAll(io.LimitReader(tr, 32<<20))
		if err != nil {
			continue
		}
		out = append(out, archiveMember{name: path.Clean(hdr.Name), data: data})
	}
	return out, nil
}
