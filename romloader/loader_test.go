package romloader

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func testROM() []byte {
	rom := make([]byte, 0x8000)
	for i := range rom {
		rom[i] = byte(i)
	}
	return rom
}

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// TestLoadROM_Raw loads a bare .gb file.
func TestLoadROM_Raw(t *testing.T) {
	rom := testROM()
	path := writeTemp(t, "game.gb", rom)

	data, name, err := LoadROM(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, rom) {
		t.Error("ROM data mismatch")
	}
	if name != "game.gb" {
		t.Errorf("name: expected game.gb, got %s", name)
	}
}

// TestLoadROM_ZIP extracts the first .gb entry from a zip archive.
func TestLoadROM_ZIP(t *testing.T) {
	rom := testROM()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("readme.txt")
	if err != nil {
		t.Fatal(err)
	}
	w.Write([]byte("not a rom"))
	w, err = zw.Create("game.gb")
	if err != nil {
		t.Fatal(err)
	}
	w.Write(rom)
	zw.Close()

	path := writeTemp(t, "game.zip", buf.Bytes())
	data, name, err := LoadROM(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, rom) {
		t.Error("ROM data mismatch")
	}
	if name != "game.gb" {
		t.Errorf("name: expected game.gb, got %s", name)
	}
}

// TestLoadROM_ZIPWithoutROM reports ErrNoGBFile.
func TestLoadROM_ZIPWithoutROM(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("readme.txt")
	if err != nil {
		t.Fatal(err)
	}
	w.Write([]byte("nothing here"))
	zw.Close()

	path := writeTemp(t, "empty.zip", buf.Bytes())
	if _, _, err := LoadROM(path); !errors.Is(err, ErrNoGBFile) {
		t.Errorf("expected ErrNoGBFile, got %v", err)
	}
}

// TestLoadROM_Gzip loads a gzipped ROM.
func TestLoadROM_Gzip(t *testing.T) {
	rom := testROM()

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	gw.Name = "game.gb"
	gw.Write(rom)
	gw.Close()

	path := writeTemp(t, "game.gb.gz", buf.Bytes())
	data, name, err := LoadROM(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, rom) {
		t.Error("ROM data mismatch")
	}
	if name != "game.gb" {
		t.Errorf("name: expected game.gb, got %s", name)
	}
}

// TestLoadROM_TarGz extracts the first .gb entry from a tarball.
func TestLoadROM_TarGz(t *testing.T) {
	rom := testROM()

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gw)
	if err := tw.WriteHeader(&tar.Header{
		Name:     "roms/game.gb",
		Mode:     0o644,
		Size:     int64(len(rom)),
		Typeflag: tar.TypeReg,
	}); err != nil {
		t.Fatal(err)
	}
	tw.Write(rom)
	tw.Close()
	gw.Close()

	path := writeTemp(t, "game.tar.gz", buf.Bytes())
	data, name, err := LoadROM(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, rom) {
		t.Error("ROM data mismatch")
	}
	if name != "game.gb" {
		t.Errorf("name: expected game.gb, got %s", name)
	}
}

// TestLoadROM_UnknownFormat rejects files it cannot identify.
func TestLoadROM_UnknownFormat(t *testing.T) {
	path := writeTemp(t, "mystery.bin", []byte{0x00, 0x01, 0x02, 0x03})
	if _, _, err := LoadROM(path); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

// TestLoadROM_Missing surfaces the open error.
func TestLoadROM_Missing(t *testing.T) {
	if _, _, err := LoadROM(filepath.Join(t.TempDir(), "nope.gb")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

// TestDetectFormat checks magic-byte priority over extensions.
func TestDetectFormat(t *testing.T) {
	testCases := []struct {
		name   string
		header []byte
		path   string
		want   formatType
	}{
		{"zip magic", magicZIP, "rom.gb", formatZIP},
		{"rar magic", magicRAR, "rom.gb", formatRAR},
		{"7z magic", magic7z, "rom.gb", format7z},
		{"gzip magic", magicGzip, "rom.gb", formatGzip},
		{"gb extension", []byte{0x00, 0xC3}, "rom.gb", formatRawGB},
		{"dmg extension", []byte{0x00, 0xC3}, "rom.dmg", formatRawGB},
		{"tar.gz suffix", []byte{0x00, 0x00}, "rom.tar.gz", formatGzip},
		{"unknown", []byte{0x00, 0x00}, "rom.bin", formatUnknown},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := detectFormat(tc.header, tc.path); got != tc.want {
				t.Errorf("expected %d, got %d", tc.want, got)
			}
		})
	}
}
