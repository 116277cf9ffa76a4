// Package events decodes program events from transaction logs and routes them
// to handlers.
package events

import (
	"crypto/sha256"
	"encoding/base64"
	"strings"

	"github.com/vietddude/votewatch/internal/core/domain"
	"github.com/vietddude/votewatch/internal/indexing/metrics"
)

const (
	programDataPrefix = "Program data: "
	programPrefix     = "Program "
)

// discriminatorLen is the size of the event tag that precedes every payload.
const discriminatorLen = 8

type decodeFunc func(r *reader) domain.Event

// decoders maps an event discriminator to its payload decoder.
var decoders = map[[discriminatorLen]byte]decodeFunc{
	Discriminator(string(domain.EventKindContestCreated)): decodeContestCreated,
	Discriminator(string(domain.EventKindVoteCasted)):     decodeVoteCasted,
}

// Discriminator returns the 8-byte tag of an event: sha256("event:<name>")[:8].
func Discriminator(name string) [discriminatorLen]byte {
	sum := sha256.Sum256([]byte("event:" + name))
	var d [discriminatorLen]byte
	copy(d[:], sum[:discriminatorLen])
	return d
}

func decodeContestCreated(r *reader) domain.Event {
	return domain.ContestCreated{
		ContestID:   r.u64(),
		CreatedBy:   r.pubkey(),
		MetadataURI: r.string(),
		CreatedAt:   r.i64(),
		StartTime:   r.i64(),
		EndTime:     r.i64(),
	}
}

func decodeVoteCasted(r *reader) domain.Event {
	return domain.VoteCasted{
		VotedBy:      r.pubkey(),
		ContestID:    r.u64(),
		ContestantID: r.u64(),
		CastedAt:     r.i64(),
	}
}

// Decode returns the events emitted by programID in logs, in log order.
// Lines emitted while another program is executing, unknown discriminators
// and malformed payloads are ignored.
func Decode(programID string, logs []string) []domain.Event {
	var (
		stack  []string
		events []domain.Event
	)
	for _, line := range logs {
		if payload, ok := strings.CutPrefix(line, programDataPrefix); ok {
			if len(stack) == 0 || stack[len(stack)-1] != programID {
				continue
			}
			if ev, ok := decodePayload(payload); ok {
				events = append(events, ev)
			}
			continue
		}

		rest, ok := strings.CutPrefix(line, programPrefix)
		if !ok {
			continue
		}
		fields := strings.Fields(rest)
		// "Program log:", "Program return:" and similar carry no frame change
		if len(fields) < 2 || strings.HasSuffix(fields[0], ":") {
			continue
		}
		switch {
		case fields[1] == "invoke":
			stack = append(stack, fields[0])
		case fields[1] == "success" || strings.HasPrefix(fields[1], "failed"):
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	return events
}

// Envelopes decodes the events of tx and tags each with its position.
func Envelopes(programID string, tx *domain.Transaction) []domain.Envelope {
	if tx == nil {
		return nil
	}
	decoded := Decode(programID, tx.LogMessages)
	envs := make([]domain.Envelope, len(decoded))
	for i, ev := range decoded {
		envs[i] = domain.Envelope{
			Signature: tx.Signature,
			Index:     i,
			Slot:      tx.Slot,
			BlockTime: tx.BlockTime,
			Event:     ev,
		}
	}
	return envs
}

func decodePayload(payload string) (domain.Event, bool) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil || len(data) < discriminatorLen {
		return nil, false
	}

	decode, ok := decoders[[discriminatorLen]byte(data[:discriminatorLen])]
	if !ok {
		return nil, false
	}

	r := &reader{buf: data[discriminatorLen:]}
	ev := decode(r)
	if r.err != nil {
		return nil, false
	}
	metrics.EventsDecoded.WithLabelValues(string(ev.Kind())).Inc()
	return ev, true
}
