package services

import (
	"context"
	"testing"

	"github.com/harmonia-labs/livemix/internal/core/domain"
)

func TestFill_DisabledIsNoOp(t *testing.T) {
	st := newTestStack()
	st.ai.responses = []string{aiTrackList([2]string{"A", "AA"})}

	session := domain.NewMixSession("u1")
	session.Preferences.AutoFill = false

	added, err := st.autofill.Fill(context.Background(), session)
	if err != nil {
		t.Fatalf("fill: %v", err)
	}
	if added != 0 || len(session.Queue) != 0 {
		t.Fatalf("disabled fill added %d tracks", added)
	}
	if st.repo.saves != 0 {
		t.Fatalf("disabled fill persisted %d times", st.repo.saves)
	}
}

func TestFill_AtTargetIsNoOp(t *testing.T) {
	st := newTestStack()
	session := domain.NewMixSession("u1")
	for i := 0; i < domain.TargetQueueDepth; i++ {
		_ = session.AddToQueue(domain.QueuedTrack{TrackID: string(rune('a' + i))})
	}

	added, err := st.autofill.Fill(context.Background(), session)
	if err != nil {
		t.Fatalf("fill: %v", err)
	}
	if added != 0 {
		t.Fatalf("full queue fill added %d", added)
	}
}

func TestFill_PersistsOnce(t *testing.T) {
	st := newTestStack()
	st.ai.responses = []string{aiTrackList(
		[2]string{"A", "AA"}, [2]string{"B", "BB"}, [2]string{"C", "CC"},
		[2]string{"D", "DD"}, [2]string{"E", "EE"},
	)}

	session := domain.NewMixSession("u1")
	added, err := st.autofill.Fill(context.Background(), session)
	if err != nil {
		t.Fatalf("fill: %v", err)
	}
	if added != domain.TargetQueueDepth {
		t.Fatalf("added = %d, want %d", added, domain.TargetQueueDepth)
	}
	if st.repo.saves != 1 {
		t.Fatalf("fill persisted %d times, want exactly 1", st.repo.saves)
	}
}

func TestFill_HonorsAvoidedArtists(t *testing.T) {
	st := newTestStack()
	st.ai.responses = []string{aiTrackList(
		[2]string{"Good One", "Friend"},
		[2]string{"Bad One", "Nemesis"},
	)}

	session := domain.NewMixSession("u1")
	session.Preferences.AvoidArtists = []string{"nemesis"}

	if _, err := st.autofill.Fill(context.Background(), session); err != nil {
		t.Fatalf("fill: %v", err)
	}
	for _, q := range session.Queue {
		if q.Artist == "Nemesis" {
			t.Fatalf("avoided artist made it into the queue: %+v", q)
		}
	}
	if len(session.Queue) != 1 {
		t.Fatalf("queue = %d, want just Good One", len(session.Queue))
	}
}
