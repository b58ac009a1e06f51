package main

import (
	"bytes"
	"testing"
)

func TestEncode_PackedAllAddresses(t *testing.T) {
	for addr := 0; addr <= 127; addr++ {
		on, ok := EncodeEvent(NoteEvent{Kind: NoteOn, Status: 0x90, Address: byte(addr), Velocity: 100}, FormatPacked)
		if !ok {
			t.Fatalf("addr %d: note on not encoded", addr)
		}
		off, ok := EncodeEvent(NoteEvent{Kind: NoteOff, Status: 0x80, Address: byte(addr)}, FormatPacked)
		if !ok {
			t.Fatalf("addr %d: note off not encoded", addr)
		}

		onB, offB := on.Encode(), off.Encode()
		if len(onB) != 1 || len(offB) != 1 {
			t.Fatalf("addr %d: packed lengths %d/%d; want 1/1", addr, len(onB), len(offB))
		}
		if want := byte(addr<<1 | 1); onB[0] != want {
			t.Fatalf("addr %d: on=%02X; want %02X", addr, onB[0], want)
		}
		if want := byte(addr << 1); offB[0] != want {
			t.Fatalf("addr %d: off=%02X; want %02X", addr, offB[0], want)
		}
		if onB[0]^offB[0] != 1 {
			t.Fatalf("addr %d: on/off differ in more than bit 0: %02X %02X", addr, onB[0], offB[0])
		}

		a, isOn := UnpackByte(onB[0])
		if int(a) != addr || !isOn {
			t.Fatalf("addr %d: UnpackByte(%02X)=(%d,%v)", addr, onB[0], a, isOn)
		}
		a, isOn = UnpackByte(offB[0])
		if int(a) != addr || isOn {
			t.Fatalf("addr %d: UnpackByte(%02X)=(%d,%v)", addr, offB[0], a, isOn)
		}
	}
}

func TestEncode_RawIsIdentity(t *testing.T) {
	for _, status := range []byte{0x80, 0x85, 0x90, 0x9F} {
		for _, note := range []byte{0, 0x3C, 127} {
			for _, vel := range []byte{0, 0x40, 127} {
				in := []byte{status, note, vel}
				f, ok := EncodeEvent(Decode(RawEvent{Data: in}), FormatRaw)
				if !ok {
					t.Fatalf("% X: not encoded", in)
				}
				if got := f.Encode(); !bytes.Equal(got, in) {
					t.Fatalf("raw encode % X = % X", in, got)
				}
			}
		}
	}
}

func TestEncode_IgnoredNoFrame(t *testing.T) {
	for _, format := range []Format{FormatRaw, FormatPacked} {
		if _, ok := EncodeEvent(NoteEvent{Kind: Ignored}, format); ok {
			t.Fatalf("%v: ignored event produced a frame", format)
		}
	}
}

func TestEncode_Scenarios(t *testing.T) {
	cases := []struct {
		name   string
		in     []byte
		raw    []byte
		packed []byte
	}{
		{"note on middle C", []byte{0x90, 0x3C, 0x64}, []byte{0x90, 0x3C, 0x64}, []byte{0x79}},
		{"note off middle C", []byte{0x80, 0x3C, 0x00}, []byte{0x80, 0x3C, 0x00}, []byte{0x78}},
		{"control change", []byte{0xB0, 0x07, 0x7F}, nil, nil},
	}
	for _, c := range cases {
		ev := Decode(RawEvent{Data: c.in})
		for _, mode := range []struct {
			format Format
			want   []byte
		}{{FormatRaw, c.raw}, {FormatPacked, c.packed}} {
			f, ok := EncodeEvent(ev, mode.format)
			if mode.want == nil {
				if ok {
					t.Fatalf("%s/%v: got frame % X; want none", c.name, mode.format, f.Encode())
				}
				continue
			}
			if !ok {
				t.Fatalf("%s/%v: no frame", c.name, mode.format)
			}
			if got := f.Encode(); !bytes.Equal(got, mode.want) {
				t.Fatalf("%s/%v: % X; want % X", c.name, mode.format, got, mode.want)
			}
		}
	}
}

func TestParseFormat(t *testing.T) {
	cases := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"raw", FormatRaw, false},
		{"RAW", FormatRaw, false},
		{" packed ", FormatPacked, false},
		{"Packed", FormatPacked, false},
		{"", 0, true},
		{"3byte", 0, true},
	}
	for _, c := range cases {
		got, err := ParseFormat(c.in)
		if c.wantErr {
			if err == nil {
				t.Fatalf("ParseFormat(%q): expected error", c.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseFormat(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("ParseFormat(%q)=%v; want %v", c.in, got, c.want)
		}
		if back, err := ParseFormat(got.String()); err != nil || back != got {
			t.Fatalf("ParseFormat(%q)=%v,%v; want %v", got.String(), back, err, got)
		}
	}
}
