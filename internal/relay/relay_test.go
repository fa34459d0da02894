package relay

import (
	"context"
	"io"
	"iter"
	"log/slog"
	"slices"
	"testing"

	"github.com/ashureev/proposal-chat/internal/llamastack"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type turnCall struct {
	messages []llamastack.Message
	stream   bool
}

// scriptedStarter replays a fixed update script for every turn and records
// what each turn carried.
type scriptedStarter struct {
	updates  []llamastack.TurnUpdate
	finalErr error
	calls    []turnCall
}

func (f *scriptedStarter) CreateTurn(ctx context.Context, messages []llamastack.Message, stream bool) iter.Seq2[llamastack.TurnUpdate, error] {
	f.calls = append(f.calls, turnCall{messages: messages, stream: stream})
	return func(yield func(llamastack.TurnUpdate, error) bool) {
		for _, u := range f.updates {
			if !yield(u, nil) {
				return
			}
		}
		if f.finalErr != nil {
			yield(llamastack.TurnUpdate{}, f.finalErr)
		}
	}
}

func (f *scriptedStarter) AgentID() string   { return "agent-test" }
func (f *scriptedStarter) SessionID() string { return "session-test" }

func completed(text string) llamastack.TurnUpdate {
	return llamastack.TurnUpdate{Event: &llamastack.TurnEvent{Payload: llamastack.EventPayload{
		EventType: llamastack.EventTurnComplete,
		Turn: &llamastack.Turn{
			OutputMessage: llamastack.Message{Role: "assistant", Content: text},
		},
	}}}
}

func errored(msg string) llamastack.TurnUpdate {
	return llamastack.TurnUpdate{Err: &llamastack.TurnError{Message: msg}}
}

func progress() llamastack.TurnUpdate {
	return llamastack.TurnUpdate{Event: &llamastack.TurnEvent{Payload: llamastack.EventPayload{
		EventType: "step_progress",
	}}}
}

func askAll(svc *Service, question string) []string {
	var got []string
	for text := range svc.Ask(context.Background(), question) {
		got = append(got, text)
	}
	return got
}

func TestAskYieldsCompletedText(t *testing.T) {
	t.Parallel()

	starter := &scriptedStarter{updates: []llamastack.TurnUpdate{completed("A")}}
	svc := NewService(starter, true, discardLogger())

	got := askAll(svc, "q")
	if !slices.Equal(got, []string{"A"}) {
		t.Errorf("yields = %q, want [A]", got)
	}
}

func TestAskAccumulatesAcrossCompletions(t *testing.T) {
	t.Parallel()

	starter := &scriptedStarter{updates: []llamastack.TurnUpdate{completed("A"), completed("B")}}
	svc := NewService(starter, true, discardLogger())

	got := askAll(svc, "q")
	if !slices.Equal(got, []string{"A", "AB"}) {
		t.Errorf("yields = %q, want [A AB]", got)
	}
}

func TestAskStopsOnErrorRecord(t *testing.T) {
	t.Parallel()

	starter := &scriptedStarter{updates: []llamastack.TurnUpdate{errored("overloaded"), completed("A")}}
	svc := NewService(starter, true, discardLogger())

	if got := askAll(svc, "q"); len(got) != 0 {
		t.Errorf("yields = %q, want none after an error record", got)
	}
}

func TestAskKeepsYieldsBeforeLateError(t *testing.T) {
	t.Parallel()

	starter := &scriptedStarter{updates: []llamastack.TurnUpdate{completed("A"), errored("overloaded")}}
	svc := NewService(starter, true, discardLogger())

	got := askAll(svc, "q")
	if !slices.Equal(got, []string{"A"}) {
		t.Errorf("yields = %q, want [A] then silence", got)
	}
}

func TestAskSwallowsTransportError(t *testing.T) {
	t.Parallel()

	starter := &scriptedStarter{
		updates:  []llamastack.TurnUpdate{completed("A")},
		finalErr: io.ErrUnexpectedEOF,
	}
	svc := NewService(starter, true, discardLogger())

	got := askAll(svc, "q")
	if !slices.Equal(got, []string{"A"}) {
		t.Errorf("yields = %q, want [A]", got)
	}

	starter = &scriptedStarter{finalErr: io.ErrUnexpectedEOF}
	svc = NewService(starter, true, discardLogger())
	if got := askAll(svc, "q"); len(got) != 0 {
		t.Errorf("yields = %q, want none when the stream fails immediately", got)
	}
}

func TestAskIgnoresOtherEvents(t *testing.T) {
	t.Parallel()

	starter := &scriptedStarter{updates: []llamastack.TurnUpdate{
		progress(),
		completed("A"),
		progress(),
	}}
	svc := NewService(starter, true, discardLogger())

	got := askAll(svc, "q")
	if !slices.Equal(got, []string{"A"}) {
		t.Errorf("yields = %q, want [A]", got)
	}
}

func TestAskStopsWhenConsumerBreaks(t *testing.T) {
	t.Parallel()

	starter := &scriptedStarter{updates: []llamastack.TurnUpdate{completed("A"), completed("B")}}
	svc := NewService(starter, true, discardLogger())

	var got []string
	for text := range svc.Ask(context.Background(), "q") {
		got = append(got, text)
		break
	}
	if !slices.Equal(got, []string{"A"}) {
		t.Errorf("yields = %q, want [A]", got)
	}
}

func TestAskSendsOnlyLatestQuestion(t *testing.T) {
	t.Parallel()

	starter := &scriptedStarter{updates: []llamastack.TurnUpdate{completed("ok")}}
	svc := NewService(starter, true, discardLogger())

	askAll(svc, "first")
	askAll(svc, "second")

	if len(starter.calls) != 2 {
		t.Fatalf("got %d turns, want 2", len(starter.calls))
	}
	last := starter.calls[1]
	if len(last.messages) != 1 {
		t.Fatalf("second turn carried %d messages, want 1", len(last.messages))
	}
	if last.messages[0].Role != llamastack.RoleUser || last.messages[0].Content != "second" {
		t.Errorf("second turn message = %+v", last.messages[0])
	}
}

func TestAskPassesStreamFlag(t *testing.T) {
	t.Parallel()

	for _, stream := range []bool{true, false} {
		starter := &scriptedStarter{updates: []llamastack.TurnUpdate{completed("ok")}}
		svc := NewService(starter, stream, discardLogger())

		askAll(svc, "q")
		if len(starter.calls) != 1 || starter.calls[0].stream != stream {
			t.Errorf("stream flag on the wire = %v, want %v", starter.calls[0].stream, stream)
		}
	}
}

type idPair struct {
	agentID   string
	sessionID string
}

// recordingCreator fakes the raw client turn API and records which ids each
// turn was created on.
type recordingCreator struct {
	pairs []idPair
}

func (r *recordingCreator) CreateTurn(ctx context.Context, agentID, sessionID string, req llamastack.TurnRequest) iter.Seq2[llamastack.TurnUpdate, error] {
	r.pairs = append(r.pairs, idPair{agentID, sessionID})
	return func(yield func(llamastack.TurnUpdate, error) bool) {
		yield(completed("ok"), nil)
	}
}

func TestSessionPairStableAcrossTurns(t *testing.T) {
	t.Parallel()

	creator := &recordingCreator{}
	reg := Registration{AgentID: "agent-42", SessionID: "sess-7"}
	svc := NewService(NewTurnAPI(creator, reg), true, discardLogger())

	for range 5 {
		askAll(svc, "q")
	}

	if len(creator.pairs) != 5 {
		t.Fatalf("got %d turns, want 5", len(creator.pairs))
	}
	for i, p := range creator.pairs {
		if p.agentID != "agent-42" || p.sessionID != "sess-7" {
			t.Errorf("turn %d used (%s, %s), want (agent-42, sess-7)", i, p.agentID, p.sessionID)
		}
	}
	if svc.AgentID() != "agent-42" || svc.SessionID() != "sess-7" {
		t.Errorf("service ids = (%s, %s)", svc.AgentID(), svc.SessionID())
	}
}

func TestHistoryAccumulates(t *testing.T) {
	t.Parallel()

	starter := &scriptedStarter{updates: []llamastack.TurnUpdate{completed("ok")}}
	svc := NewService(starter, true, discardLogger())

	for _, q := range []string{"a", "b", "c"} {
		askAll(svc, q)
	}

	got := svc.History()
	if !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Fatalf("history = %q", got)
	}

	// The returned slice is a copy.
	got[0] = "mutated"
	if svc.History()[0] != "a" {
		t.Error("History exposed internal state")
	}
}
