// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"tapeloop/internal/controller"
	"tapeloop/internal/log"
	"tapeloop/internal/transport"
)

// Flag bits of the meter packet.
const (
	FlagRecording uint8 = 1 << iota
	FlagRecordingPlayback
	FlagPlayThrough
	FlagShowBeat
	FlagMetronome
)

// HeaderSize is the size of the fixed part of a meter packet.
const HeaderSize = 4 + 8 + 4 + 4 + 1 + 2

/*
Meter Packet Structure (BigEndian)

+-----------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description             |
|-------------------|----------------|--------------|-------------------------|
| Sequence Number   | uint32         | 4            | Monotonically increasing|
| Timestamp         | int64          | 8            | Nanoseconds since epoch |
| Beat Index        | uint32         | 4            | Beats since start       |
| Audio Index       | uint32         | 4            | Playhead in the tape    |
| Flags             | uint8          | 1            | Flag* bits              |
| Peak Count        | uint16         | 2            | Number of floats (N)    |
| Peaks             | []float32      | N * 4        | Tapes then input        |
+-----------------------------------------------------------------------------+
*/

// MeterTransport packs snapshots into meter packets and sends them with a
// Sender.
type MeterTransport struct {
	sender *Sender
	now    func() time.Time

	mu          sync.Mutex
	sequenceNum uint32
	buf         bytes.Buffer // reused for every packet
}

// NewMeterTransport wraps sender. The transport owns it from now on.
func NewMeterTransport(sender *Sender) *MeterTransport {
	return &MeterTransport{sender: sender, now: time.Now}
}

// Send packs and transmits a controller.Snapshot.
func (m *MeterTransport) Send(data any) error {
	var snap *controller.Snapshot
	switch s := data.(type) {
	case controller.Snapshot:
		snap = &s
	case *controller.Snapshot:
		snap = s
	default:
		return fmt.Errorf("meter transport: unsupported payload %T", data)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.sequenceNum++
	packet := m.pack(snap)
	if err := m.sender.Send(packet); err != nil {
		return err
	}
	log.Debugf("MeterTransport: Sent packet %d (%d bytes)", m.sequenceNum, len(packet))
	return nil
}

func (m *MeterTransport) pack(s *controller.Snapshot) []byte {
	var flags uint8
	if s.Recording {
		flags |= FlagRecording
	}
	if s.RecordingPlayback {
		flags |= FlagRecordingPlayback
	}
	if s.PlayThrough {
		flags |= FlagPlayThrough
	}
	if s.ShowBeat {
		flags |= FlagShowBeat
	}
	if s.MetronomeOn {
		flags |= FlagMetronome
	}

	m.buf.Reset()
	// Writes to a bytes.Buffer cannot fail.
	_ = binary.Write(&m.buf, binary.BigEndian, m.sequenceNum)
	_ = binary.Write(&m.buf, binary.BigEndian, m.now().UnixNano())
	_ = binary.Write(&m.buf, binary.BigEndian, s.BeatIndex)
	_ = binary.Write(&m.buf, binary.BigEndian, uint32(s.AudioIndex))
	_ = m.buf.WriteByte(flags)
	_ = binary.Write(&m.buf, binary.BigEndian, uint16(len(s.Peaks)))
	_ = binary.Write(&m.buf, binary.BigEndian, s.Peaks[:])
	return m.buf.Bytes()
}

// Close closes the underlying sender.
func (m *MeterTransport) Close() error {
	return m.sender.Close()
}

var _ transport.Transport = (*MeterTransport)(nil)
