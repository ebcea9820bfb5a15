package publish_test

import (
	"testing"
	"time"

	"OutcomeLedger/internal/event"
	"OutcomeLedger/internal/publish"

	"github.com/rs/zerolog"
)

// ============================================================================
// Test: subject layout
// ============================================================================

func TestSubjectFor(t *testing.T) {
	evt := event.New(event.TypeSplitExecuted)
	evt.MarketID = "btc-100k"
	if got := publish.SubjectFor(evt); got != "outcome.ledger.events.SplitExecuted.btc-100k" {
		t.Errorf("got %q", got)
	}

	deposit := event.New(event.TypeDepositConfirmed)
	if got := publish.SubjectFor(deposit); got != "outcome.ledger.events.DepositConfirmed" {
		t.Errorf("got %q", got)
	}
}

func TestEnqueue_DropsWhenFull(t *testing.T) {
	p := publish.NewPublisher(nil, 1, nil, zerolog.Nop())

	// Buffer capacity is 1 and no Run loop is draining; the second
	// enqueue must drop rather than block.
	done := make(chan struct{})
	go func() {
		p.Enqueue(event.New(event.TypeSplitExecuted))
		p.Enqueue(event.New(event.TypeSplitExecuted))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Enqueue blocked on full buffer")
	}
}
