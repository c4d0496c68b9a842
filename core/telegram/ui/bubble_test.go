package ui

import (
	"context"
	"errors"
	"testing"
)

type fakeStore struct {
	last map[int64]int
}

func newFakeStore() *fakeStore { return &fakeStore{last: map[int64]int{}} }

func (s *fakeStore) LastMessageID(chatID int64) int        { return s.last[chatID] }
func (s *fakeStore) SetLastMessageID(chatID int64, id int) { s.last[chatID] = id }

type call struct {
	op    string
	msgID int
	text  string
	photo string
}

type fakeMessenger struct {
	calls   []call
	nextID  int
	editErr error
	sendErr error
	delErr  error
}

func (m *fakeMessenger) Send(_ context.Context, _ int64, s Screen) (int, error) {
	m.calls = append(m.calls, call{op: "send", text: s.Text, photo: s.Photo})
	if m.sendErr != nil {
		return 0, m.sendErr
	}
	m.nextID++
	return m.nextID, nil
}

func (m *fakeMessenger) Edit(_ context.Context, _ int64, msgID int, s Screen) error {
	m.calls = append(m.calls, call{op: "edit", msgID: msgID, text: s.Text})
	return m.editErr
}

func (m *fakeMessenger) Delete(_ context.Context, _ int64, msgID int) error {
	m.calls = append(m.calls, call{op: "delete", msgID: msgID})
	return m.delErr
}

func ops(calls []call) []string {
	out := make([]string, 0, len(calls))
	for _, c := range calls {
		out = append(out, c.op)
	}
	return out
}

func sameOps(got []call, want ...string) bool {
	if len(got) != len(want) {
		return false
	}
	for i, c := range got {
		if c.op != want[i] {
			return false
		}
	}
	return true
}

func TestRenderSendsFirstBubble(t *testing.T) {
	m := &fakeMessenger{}
	store := newFakeStore()
	b := NewBubble(m, store)

	id, err := b.Render(context.Background(), 10, Screen{Text: "menu"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !sameOps(m.calls, "send") {
		t.Fatalf("calls = %v, want [send]", ops(m.calls))
	}
	if store.LastMessageID(10) != id {
		t.Fatalf("store holds %d, renderer returned %d", store.LastMessageID(10), id)
	}
}

func TestRenderEditsExistingBubble(t *testing.T) {
	m := &fakeMessenger{}
	store := newFakeStore()
	store.SetLastMessageID(10, 42)
	b := NewBubble(m, store)

	id, err := b.Render(context.Background(), 10, Screen{Text: "next screen"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if id != 42 {
		t.Fatalf("id = %d, want the edited bubble 42", id)
	}
	if !sameOps(m.calls, "edit") {
		t.Fatalf("calls = %v, want [edit]", ops(m.calls))
	}
}

func TestRenderTreatsNotModifiedAsSuccess(t *testing.T) {
	m := &fakeMessenger{editErr: ErrNotModified}
	store := newFakeStore()
	store.SetLastMessageID(10, 42)
	b := NewBubble(m, store)

	id, err := b.Render(context.Background(), 10, Screen{Text: "same screen"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if id != 42 {
		t.Fatalf("id = %d, want 42", id)
	}
	if !sameOps(m.calls, "edit") {
		t.Fatalf("identical edit must not delete or resend, calls = %v", ops(m.calls))
	}
}

func TestRenderReplacesWhenEditFails(t *testing.T) {
	m := &fakeMessenger{editErr: errors.New("message to edit not found")}
	store := newFakeStore()
	store.SetLastMessageID(10, 42)
	b := NewBubble(m, store)

	id, err := b.Render(context.Background(), 10, Screen{Text: "recovered"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !sameOps(m.calls, "edit", "delete", "send") {
		t.Fatalf("calls = %v, want [edit delete send]", ops(m.calls))
	}
	if store.LastMessageID(10) != id || id == 42 {
		t.Fatalf("store %d, id %d: replacement must register a new bubble", store.LastMessageID(10), id)
	}
}

func TestRenderForceNewReplacesBubble(t *testing.T) {
	m := &fakeMessenger{}
	store := newFakeStore()
	store.SetLastMessageID(10, 42)
	b := NewBubble(m, store)

	if _, err := b.Render(context.Background(), 10, Screen{Text: "fresh", ForceNew: true}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !sameOps(m.calls, "delete", "send") {
		t.Fatalf("calls = %v, want [delete send]", ops(m.calls))
	}
}

func TestRenderPhotoNeverEdits(t *testing.T) {
	m := &fakeMessenger{}
	store := newFakeStore()
	store.SetLastMessageID(10, 42)
	b := NewBubble(m, store)

	if _, err := b.Render(context.Background(), 10, Screen{Text: "qr", Photo: "https://x/qr.png"}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !sameOps(m.calls, "delete", "send") {
		t.Fatalf("calls = %v, want [delete send]", ops(m.calls))
	}
	if m.calls[1].photo == "" {
		t.Fatalf("send lost the photo reference")
	}
}

func TestRenderSurvivesDeleteFailure(t *testing.T) {
	m := &fakeMessenger{delErr: errors.New("message can't be deleted")}
	store := newFakeStore()
	store.SetLastMessageID(10, 42)
	b := NewBubble(m, store)

	id, err := b.Render(context.Background(), 10, Screen{Text: "fresh", ForceNew: true})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !sameOps(m.calls, "delete", "send") {
		t.Fatalf("calls = %v, want [delete send]", ops(m.calls))
	}
	if store.LastMessageID(10) != id {
		t.Fatalf("store %d, want %d", store.LastMessageID(10), id)
	}
}

func TestRenderSendFailureKeepsStore(t *testing.T) {
	m := &fakeMessenger{sendErr: errors.New("forbidden: bot was blocked by the user")}
	store := newFakeStore()
	b := NewBubble(m, store)

	if _, err := b.Render(context.Background(), 10, Screen{Text: "menu"}); err == nil {
		t.Fatalf("Render must surface the send failure")
	}
	if store.LastMessageID(10) != 0 {
		t.Fatalf("failed send must not register a bubble, store = %d", store.LastMessageID(10))
	}
}
