package main

import "time"

const (
	statusMask    = 0xF0
	statusNoteOn  = 0x90
	statusNoteOff = 0x80
	dataMask      = 0x7F
)

// RawEvent is one message as delivered by the MIDI input, plus the time since
// the previous message on the same connection.
type RawEvent struct {
	Data  []byte
	Delta time.Duration
}

type EventKind int

const (
	Ignored EventKind = iota
	NoteOn
	NoteOff
)

func (k EventKind) String() string {
	switch k {
	case NoteOn:
		return "NOTE_ON"
	case NoteOff:
		return "NOTE_OFF"
	}
	return "IGNORED"
}

// NoteEvent is a decoded note message. Address is always 0..127.
type NoteEvent struct {
	Kind     EventKind
	Status   byte
	Address  byte
	Velocity byte
}

// Decode classifies a raw message. Short messages, non-note messages and
// messages with an out-of-range data byte decode to Ignored.
func Decode(ev RawEvent) NoteEvent {
	if len(ev.Data) < 3 {
		return NoteEvent{Kind: Ignored}
	}
	status, note, vel := ev.Data[0], ev.Data[1], ev.Data[2]
	if note&^dataMask != 0 || vel&^dataMask != 0 {
		return NoteEvent{Kind: Ignored}
	}

	var kind EventKind
	switch status & statusMask {
	case statusNoteOn:
		kind = NoteOn
	case statusNoteOff:
		kind = NoteOff
	default:
		return NoteEvent{Kind: Ignored}
	}
	return NoteEvent{Kind: kind, Status: status, Address: note, Velocity: vel}
}
