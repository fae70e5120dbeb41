package encoder

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/spf13/afero"
)

func sine(n int) []int16 {
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(8000 * math.Sin(2*math.Pi*440*float64(i)/SampleRate))
	}
	return samples
}

func encodeFile(t *testing.T, enc Encoding, samples []int16) []byte {
	t.Helper()
	fs := afero.NewMemMapFs()
	f, err := fs.Create("/rec." + enc.Ext())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	e, err := New(enc, f, SampleRate)
	if err != nil {
		t.Fatalf("New(%s): %v", enc, err)
	}
	for i := 0; i < len(samples); i += BlockSize {
		if err := e.EncodeBlock(samples[i:min(i+BlockSize, len(samples))]); err != nil {
			t.Fatalf("EncodeBlock at offset %d: %v", i, err)
		}
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if e.TotalFrames() != uint64(len(samples)) {
		t.Errorf("TotalFrames = %d, want %d", e.TotalFrames(), len(samples))
	}
	// the encoder must leave the file open for the caller
	if err := f.Close(); err != nil {
		t.Fatalf("file Close: %v", err)
	}
	data, err := afero.ReadFile(fs, "/rec."+enc.Ext())
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	return data
}

func TestParseEncoding(t *testing.T) {
	cases := []struct {
		in   string
		want Encoding
		ok   bool
	}{
		{"opus", Opus, true},
		{"FLAC", Flac, true},
		{" wav ", Wav, true},
		{"", Opus, true},
		{"mp3", "", false},
	}
	for _, c := range cases {
		got, err := ParseEncoding(c.in)
		if (err == nil) != c.ok {
			t.Errorf("ParseEncoding(%q) err = %v, want ok=%v", c.in, err, c.ok)
			continue
		}
		if got != c.want {
			t.Errorf("ParseEncoding(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestExt(t *testing.T) {
	if Opus.Ext() != "ogg" || Flac.Ext() != "flac" || Wav.Ext() != "wav" {
		t.Errorf("unexpected extensions: %s %s %s", Opus.Ext(), Flac.Ext(), Wav.Ext())
	}
}

func TestWavEncoder(t *testing.T) {
	samples := sine(SampleRate / 2)
	data := encodeFile(t, Wav, samples)

	if string(data[:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Fatalf("missing RIFF/WAVE header: %q", data[:12])
	}
	if got := binary.LittleEndian.Uint32(data[24:28]); got != SampleRate {
		t.Errorf("header sample rate = %d, want %d", got, SampleRate)
	}
	if want := 44 + len(samples)*2; len(data) != want {
		t.Errorf("file size = %d, want %d", len(data), want)
	}
}

func TestFlacEncoder(t *testing.T) {
	samples := sine(BlockSize*2 + BlockSize/4)
	data := encodeFile(t, Flac, samples)

	if len(data) < 4 || string(data[:4]) != "fLaC" {
		t.Fatal("output does not start with FLAC magic")
	}
	t.Logf("Raw: %d bytes, FLAC: %d bytes", len(samples)*2, len(data))
}

func TestFlacEncoderEmpty(t *testing.T) {
	data := encodeFile(t, Flac, nil)
	if len(data) < 4 || string(data[:4]) != "fLaC" {
		t.Error("expected FLAC header even with no samples")
	}
}

func TestOpusEncoder(t *testing.T) {
	// not a multiple of the 20ms frame, so Close has to pad
	samples := sine(SampleRate + 100)
	data := encodeFile(t, Opus, samples)

	if len(data) < 4 || string(data[:4]) != "OggS" {
		t.Fatal("output does not start with Ogg capture pattern")
	}
	if len(data) >= len(samples)*2 {
		t.Errorf("opus output %d bytes is not smaller than raw %d bytes", len(data), len(samples)*2)
	}
}

func TestEncodeTime(t *testing.T) {
	e := NewWav(nopCloser{}, SampleRate)
	e.AddEncodeTime(3)
	e.AddEncodeTime(4)
	if e.EncodeTime() != 7 {
		t.Errorf("EncodeTime = %v, want 7ns", e.EncodeTime())
	}
}
