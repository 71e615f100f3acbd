package image

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func testFiles() []string {
	return []string{
		filepath.Join("testdata", "foo"),
		filepath.Join("testdata", "bar"),
		filepath.Join("testdata", "baz"),
	}
}

func createTestImage(t *testing.T) (*Image, string) {
	imgFile := filepath.Join(t.TempDir(), "flash.img")
	i, err := CreateImage(imgFile, 2)
	require.Nil(t, err)
	return i, imgFile
}

func TestImageCreate(t *testing.T) {
	i, imgFile := createTestImage(t)
	require.Nil(t, i.Close())

	info, err := os.Stat(imgFile)
	require.Nil(t, err)
	require.Equal(t, int64(512*264), info.Size())
	require.True(t, IsImage(imgFile))

	j, err := OpenImage(imgFile)
	require.Nil(t, err)
	defer j.Close()
	records, err := j.ScanFiles()
	require.Nil(t, err)
	require.Empty(t, records)
}

func TestImageOpenErrors(t *testing.T) {
	_, err := OpenImage(filepath.Join(t.TempDir(), "missing.img"))
	require.NotNil(t, err)

	odd := filepath.Join(t.TempDir(), "odd.img")
	require.Nil(t, os.WriteFile(odd, make([]byte, 1000), 0600))
	require.False(t, IsImage(odd))
	_, err = OpenImage(odd)
	require.NotNil(t, err)

	erased := filepath.Join(t.TempDir(), "erased.img")
	require.Nil(t, os.WriteFile(erased, bytes.Repeat([]byte{0xFF}, 512*264), 0600))
	require.True(t, IsImage(erased))
	_, err = OpenImage(erased)
	require.NotNil(t, err)
}

func TestImageAddFiles(t *testing.T) {
	i, imgFile := createTestImage(t)
	for _, file := range testFiles() {
		_, name := filepath.Split(file)
		err := i.AddFile(name, file)
		require.Nil(t, err)
	}
	err := i.AddFile("foo", testFiles()[0])
	require.NotNil(t, err)
	require.Nil(t, i.Close())

	j, err := OpenImage(imgFile)
	require.Nil(t, err)
	defer j.Close()
	records, err := j.ScanFiles()
	require.Nil(t, err)
	require.Len(t, records, 3)
	for n, file := range testFiles() {
		want, err := os.ReadFile(file)
		require.Nil(t, err)
		_, name := filepath.Split(file)
		require.Equal(t, name, records[n].Name)
		require.Equal(t, int64(len(want)), records[n].Size)
		data, err := j.ReadFile(name)
		require.Nil(t, err)
		require.Equal(t, want, data)
	}
}

func TestImageAppend(t *testing.T) {
	i, _ := createTestImage(t)
	defer i.Close()
	require.Nil(t, i.WriteFile("log", []byte("one\n")))
	require.Nil(t, i.Append("log", []byte("two\n")))
	data, err := i.ReadFile("log")
	require.Nil(t, err)
	require.Equal(t, "one\ntwo\n", string(data))

	require.NotNil(t, i.Append("missing", []byte("x")))
	_, err = i.ReadFile("missing")
	require.NotNil(t, err)
}

func TestImageImportExport(t *testing.T) {
	i, _ := createTestImage(t)
	defer i.Close()
	err := i.Import(filepath.Join("testdata", "files"))
	require.Nil(t, err)

	records, err := i.ScanFiles()
	require.Nil(t, err)
	names := []string{}
	for _, record := range records {
		names = append(names, record.Name)
	}
	require.Equal(t, []string{"sub/deep.txt", "top.txt"}, names)

	outDir := t.TempDir()
	require.Nil(t, i.Export(outDir))
	data, err := os.ReadFile(filepath.Join(outDir, "sub", "deep.txt"))
	require.Nil(t, err)
	require.Equal(t, "nested\n", string(data))
	data, err = os.ReadFile(filepath.Join(outDir, "top.txt"))
	require.Nil(t, err)
	require.Equal(t, "top level\n", string(data))

	require.Nil(t, i.WriteFile("../escape", []byte("x")))
	require.NotNil(t, i.Export(t.TempDir()))
}

func TestImageRewrite(t *testing.T) {
	src, srcFile := createTestImage(t)
	for _, file := range testFiles() {
		_, name := filepath.Split(file)
		require.Nil(t, src.AddFile(name, file))
	}
	require.Nil(t, src.Append("foo", []byte("appended")))
	require.Nil(t, src.Close())

	dstFile := filepath.Join(t.TempDir(), "rewrite.img")
	require.Nil(t, RewriteImage(dstFile, srcFile, 3))

	dst, err := OpenImage(dstFile)
	require.Nil(t, err)
	defer dst.Close()
	info, err := dst.Info()
	require.Nil(t, err)
	require.Equal(t, "AT45DB021", info["device"])
	require.Equal(t, 3, info["files"])

	data, err := dst.ReadFile("foo")
	require.Nil(t, err)
	require.Equal(t, "foo file\nappended", string(data))

	records, err := dst.ScanFiles()
	require.Nil(t, err)
	require.Equal(t, "bar", records[1].Name)
}

func TestImageRewriteInPlace(t *testing.T) {
	src, srcFile := createTestImage(t)
	require.Nil(t, src.WriteFile("keep", []byte("kept data")))
	require.Nil(t, src.Close())
	before, err := os.ReadFile(srcFile)
	require.Nil(t, err)

	same := filepath.Dir(srcFile) + string(filepath.Separator) + "." + string(filepath.Separator) + filepath.Base(srcFile)
	require.NotNil(t, RewriteImage(same, srcFile, 0))

	after, err := os.ReadFile(srcFile)
	require.Nil(t, err)
	require.Equal(t, before, after)

	i, err := OpenImage(srcFile)
	require.Nil(t, err)
	defer i.Close()
	data, err := i.ReadFile("keep")
	require.Nil(t, err)
	require.Equal(t, "kept data", string(data))
}

func TestImageDump(t *testing.T) {
	i, _ := createTestImage(t)
	defer i.Close()
	require.Nil(t, i.WriteFile("dumped", []byte("flash")))

	var buf bytes.Buffer
	require.Nil(t, i.Dump(&buf, 2))
	lines := strings.Split(buf.String(), "\n")
	require.True(t, strings.HasPrefix(lines[0], "2.0000: 00 00 00 00 00 66 6c 61 73 68 ff"))

	info, err := i.Info()
	require.Nil(t, err)
	require.Equal(t, "1f 22 00 00", info["id"])
	require.NotEmpty(t, info["image"])
}
