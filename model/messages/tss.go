package messages

import (
	"fmt"

	"github.com/tsswallet/tss-wallet/model/tss"
)

// ProtocolMessage is the type of message exchanged between simulated
// participants during one phase. Payload is opaque to everything but the
// protocol engine that produced it.
type ProtocolMessage struct {
	From      tss.PartyID
	To        tss.PartyID // ignored when Broadcast is set
	Broadcast bool
	Phase     tss.Phase
	Round     int
	Payload   []byte
}

// NewBroadcastMessage creates a message addressed to every other participant.
func NewBroadcastMessage(from tss.PartyID, phase tss.Phase, round int, payload []byte) *ProtocolMessage {
	return &ProtocolMessage{
		From:      from,
		Broadcast: true,
		Phase:     phase,
		Round:     round,
		Payload:   payload,
	}
}

// NewDirectMessage creates a message addressed to a single participant.
func NewDirectMessage(from, to tss.PartyID, phase tss.Phase, round int, payload []byte) *ProtocolMessage {
	return &ProtocolMessage{
		From:    from,
		To:      to,
		Phase:   phase,
		Round:   round,
		Payload: payload,
	}
}

// IsFor returns true if the message should be delivered to id.
func (m *ProtocolMessage) IsFor(id tss.PartyID) bool {
	if m.From == id {
		return false
	}
	return m.Broadcast || m.To == id
}

// Copy returns a copy addressed to the single participant to. Broadcasts are
// expanded into one copy per destination before delivery.
func (m *ProtocolMessage) Copy(to tss.PartyID) *ProtocolMessage {
	c := *m
	c.To = to
	return &c
}

func (m *ProtocolMessage) String() string {
	dest := "all"
	if !m.Broadcast {
		dest = m.To.String()
	}
	return fmt.Sprintf("%s/r%d %d->%s (%d bytes)", m.Phase, m.Round, m.From, dest, len(m.Payload))
}
