package events

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/votewatch/internal/core/domain"
)

const testProgram = "Vote111111111111111111111111111111111111111"

// payload builds a borsh event payload.
type payload struct{ bytes.Buffer }

func newPayload(name string) *payload {
	p := &payload{}
	d := Discriminator(name)
	p.Write(d[:])
	return p
}

func (p *payload) u64(v uint64) *payload {
	_ = binary.Write(&p.Buffer, binary.LittleEndian, v)
	return p
}

func (p *payload) i64(v int64) *payload {
	_ = binary.Write(&p.Buffer, binary.LittleEndian, v)
	return p
}

func (p *payload) key(b byte) *payload {
	p.Write(bytes.Repeat([]byte{b}, 32))
	return p
}

func (p *payload) str(s string) *payload {
	_ = binary.Write(&p.Buffer, binary.LittleEndian, uint32(len(s)))
	p.WriteString(s)
	return p
}

func (p *payload) line() string {
	return "Program data: " + base64.StdEncoding.EncodeToString(p.Bytes())
}

func voteLine(voter byte, contest, contestant uint64, at int64) string {
	return newPayload("VoteCasted").key(voter).u64(contest).u64(contestant).i64(at).line()
}

func invoked(program string, lines ...string) []string {
	out := []string{"Program " + program + " invoke [1]"}
	out = append(out, lines...)
	return append(out, "Program "+program+" success")
}

func TestDiscriminator(t *testing.T) {
	d := Discriminator("VoteCasted")
	assert.Len(t, d, 8)
	assert.NotEqual(t, d, Discriminator("ContestCreated"))
}

func TestDecode_VoteCasted(t *testing.T) {
	logs := invoked(testProgram,
		"Program log: Instruction: Vote",
		voteLine(7, 1, 42, 1700000000),
	)

	got := Decode(testProgram, logs)
	require.Len(t, got, 1)
	assert.Equal(t, domain.VoteCasted{
		VotedBy:      base58.Encode(bytes.Repeat([]byte{7}, 32)),
		ContestID:    1,
		ContestantID: 42,
		CastedAt:     1700000000,
	}, got[0])
}

func TestDecode_ContestCreated(t *testing.T) {
	line := newPayload("ContestCreated").
		u64(3).key(1).str("ipfs://meta").i64(100).i64(200).i64(300).line()

	got := Decode(testProgram, invoked(testProgram, line))
	require.Len(t, got, 1)

	ev, ok := got[0].(domain.ContestCreated)
	require.True(t, ok)
	assert.Equal(t, uint64(3), ev.ContestID)
	assert.Equal(t, "ipfs://meta", ev.MetadataURI)
	assert.Equal(t, int64(100), ev.CreatedAt)
	assert.Equal(t, int64(200), ev.StartTime)
	assert.Equal(t, int64(300), ev.EndTime)
}

func TestDecode_Skips(t *testing.T) {
	tests := []struct {
		name string
		logs []string
	}{
		{"not invoked", []string{voteLine(1, 1, 1, 1)}},
		{"other program", invoked("Other11111111111111111111111111111111111111", voteLine(1, 1, 1, 1))},
		{"bad base64", invoked(testProgram, "Program data: !!!not-base64")},
		{"unknown discriminator", invoked(testProgram, newPayload("SomethingElse").u64(1).line())},
		{"truncated payload", invoked(testProgram, newPayload("VoteCasted").key(1).u64(1).line())},
		{"string longer than payload", invoked(testProgram, newPayload("ContestCreated").u64(1).key(1).u64(1<<20).line())},
		{"too short", invoked(testProgram, "Program data: AAAA")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, Decode(testProgram, tt.logs))
		})
	}
}

func TestDecode_NestedInvocation(t *testing.T) {
	other := "Other11111111111111111111111111111111111111"
	logs := []string{
		"Program " + testProgram + " invoke [1]",
		voteLine(1, 1, 1, 10),
		"Program " + other + " invoke [2]",
		voteLine(2, 1, 2, 20), // emitted by the inner program
		"Program " + other + " consumed 1200 of 200000 compute units",
		"Program " + other + " success",
		voteLine(3, 1, 3, 30),
		"Program " + testProgram + " success",
	}

	got := Decode(testProgram, logs)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(1), got[0].(domain.VoteCasted).ContestantID)
	assert.Equal(t, uint64(3), got[1].(domain.VoteCasted).ContestantID)
}

func TestEnvelopes(t *testing.T) {
	tx := &domain.Transaction{
		Signature:   "sig1",
		Slot:        9,
		LogMessages: invoked(testProgram, voteLine(1, 1, 1, 1), voteLine(2, 1, 2, 2)),
	}
	envs := Envelopes(testProgram, tx)
	require.Len(t, envs, 2)
	assert.Equal(t, 0, envs[0].Index)
	assert.Equal(t, 1, envs[1].Index)
	assert.Equal(t, "sig1", envs[1].Signature)
	assert.Nil(t, Envelopes(testProgram, nil))
}

type recordingHandler struct {
	contests []domain.ContestCreated
	votes    []domain.VoteCasted
	err      error
}

func (h *recordingHandler) OnContestCreated(ctx context.Context, env domain.Envelope, ev domain.ContestCreated) error {
	h.contests = append(h.contests, ev)
	return h.err
}

func (h *recordingHandler) OnVoteCasted(ctx context.Context, env domain.Envelope, ev domain.VoteCasted) error {
	h.votes = append(h.votes, ev)
	return h.err
}

func TestDispatcher_Routes(t *testing.T) {
	h := &recordingHandler{}
	d := NewDispatcher(h, h)

	envs := []domain.Envelope{
		{Signature: "s", Index: 0, Event: domain.ContestCreated{ContestID: 1}},
		{Signature: "s", Index: 1, Event: domain.VoteCasted{ContestID: 1, ContestantID: 2}},
	}
	require.NoError(t, d.DispatchAll(context.Background(), envs))
	assert.Len(t, h.contests, 1)
	assert.Len(t, h.votes, 1)
}

func TestDispatcher_StopsAtFirstError(t *testing.T) {
	h := &recordingHandler{err: errors.New("redis down")}
	d := NewDispatcher(nil, h)

	envs := []domain.Envelope{
		{Signature: "s", Index: 0, Event: domain.VoteCasted{ContestantID: 1}},
		{Signature: "s", Index: 1, Event: domain.VoteCasted{ContestantID: 2}},
	}
	err := d.DispatchAll(context.Background(), envs)
	require.Error(t, err)
	assert.ErrorIs(t, err, h.err)
	assert.Len(t, h.votes, 1)
}

func TestDispatcher_NoVoteHandler(t *testing.T) {
	d := NewDispatcher(nil, nil)
	err := d.Dispatch(context.Background(), domain.Envelope{Event: domain.VoteCasted{}})
	assert.ErrorIs(t, err, ErrUnknownEvent)

	// contests fall back to the logging handler
	assert.NoError(t, d.Dispatch(context.Background(), domain.Envelope{Event: domain.ContestCreated{}}))
}
