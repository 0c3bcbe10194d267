package queue

import "testing"

func TestNewPoolSeedsFixedCardinality(t *testing.T) {
	workers := 3
	q := NewPool(workers, 1024, 1024)

	want := 2*workers + 4
	var got int
	for i := 0; i < want; i++ {
		msg := q.Pop()
		if msg.Buf == nil {
			t.Fatalf("buffer %d is nil", i)
		}
		if len(msg.Buf.Input) != 1024 {
			t.Errorf("buffer %d input size = %d, want 1024", i, len(msg.Buf.Input))
		}
		got++
	}
	if got != want {
		t.Fatalf("popped %d buffers, want %d", got, want)
	}
}

func TestPushPopOrderPreserved(t *testing.T) {
	q := NewQueue(4)
	q.PushStop()
	q.Push(Msg{})
	msg := q.Pop()
	if !msg.Stop {
		t.Fatal("expected the Stop message to be popped first (FIFO order)")
	}
}

func TestDrainEmptiesQueue(t *testing.T) {
	q := NewQueue(4)
	q.Push(Msg{})
	q.Push(Msg{})
	q.Drain()

	select {
	case <-q.ch:
		t.Fatal("expected queue to be empty after Drain")
	default:
	}
}
