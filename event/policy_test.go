package event_test

import (
	"testing"

	"github.com/xraph/sequent/event"
)

func TestFullConcurrency(t *testing.T) {
	p := event.FullConcurrency()
	if key := p.SequenceOf(event.NewBase("a")); key != nil {
		t.Errorf("expected nil key, got %v", key)
	}
}

func TestSequential_SingleKey(t *testing.T) {
	p := event.Sequential()
	k1 := p.SequenceOf(event.NewBase("a"))
	k2 := p.SequenceOf(event.NewBase("b"))
	if k1 == nil || k2 == nil {
		t.Fatal("expected non-nil keys")
	}
	if k1 != k2 {
		t.Errorf("expected identical keys for all events, got %v and %v", k1, k2)
	}
}

func TestPerEventName(t *testing.T) {
	p := event.PerEventName()

	a1 := p.SequenceOf(event.NewBase("order.created"))
	a2 := p.SequenceOf(event.NewBase("order.created"))
	b := p.SequenceOf(event.NewBase("order.shipped"))

	if a1 != a2 {
		t.Errorf("same name should yield equal keys: %v != %v", a1, a2)
	}
	if a1 == b {
		t.Errorf("distinct names should yield distinct keys, both %v", a1)
	}
}

func TestPolicyFunc(t *testing.T) {
	p := event.PolicyFunc(func(e event.Event) any {
		return e.Name()[:1]
	})
	if key := p.SequenceOf(event.NewBase("xyz")); key != "x" {
		t.Errorf("expected %q, got %v", "x", key)
	}
}
