package main

import (
	"fmt"
	"strings"
)

// Format selects the on-wire representation of a note event. The receiving
// hardware is built for exactly one of them.
type Format int

const (
	FormatRaw    Format = iota // [status][note][velocity]
	FormatPacked               // [note:7][on:1]
)

func (f Format) String() string {
	switch f {
	case FormatRaw:
		return "raw"
	case FormatPacked:
		return "packed"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// ParseFormat parses the -format flag value.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "raw":
		return FormatRaw, nil
	case "packed":
		return FormatPacked, nil
	}
	return 0, fmt.Errorf("unknown wire format %q (want raw or packed)", s)
}

// Frame is everything the hardware receives for one note event.
type Frame struct {
	Format   Format
	Status   byte
	Note     byte // 0-127
	Velocity byte
}

// EncodeEvent builds the frame for a decoded event. Ignored events produce no
// frame.
func EncodeEvent(ev NoteEvent, format Format) (Frame, bool) {
	if ev.Kind != NoteOn && ev.Kind != NoteOff {
		return Frame{}, false
	}
	return Frame{
		Format:   format,
		Status:   ev.Status,
		Note:     ev.Address & dataMask,
		Velocity: ev.Velocity,
	}, true
}

// On reports whether the frame carries a note-on.
func (f Frame) On() bool {
	return f.Status&statusMask == statusNoteOn
}

// Encode builds the on-wire representation:
//
//	raw:    [STATUS][NOTE][VELOCITY]
//	packed: [NOTE<<1 | ON]
func (f Frame) Encode() []byte {
	if f.Format == FormatPacked {
		var bit byte
		if f.On() {
			bit = 1
		}
		return []byte{f.Note<<1 | bit}
	}
	return []byte{f.Status, f.Note, f.Velocity}
}

// UnpackByte reverses the packed encoding.
func UnpackByte(b byte) (note byte, on bool) {
	return b >> 1, b&1 == 1
}
