package logbuf

import (
	"fmt"
	"testing"
	"time"
)

func messages(es []Entry) []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.Message
	}
	return out
}

func TestDefaultCapacity(t *testing.T) {
	if got := New(0).Cap(); got != DefaultCapacity {
		t.Fatalf("Cap() = %d, want %d", got, DefaultCapacity)
	}
	if got := New(-3).Cap(); got != DefaultCapacity {
		t.Fatalf("Cap() = %d, want %d", got, DefaultCapacity)
	}
}

func TestAppendBelowCapacity(t *testing.T) {
	b := New(3)
	now := time.Date(2026, 1, 2, 9, 4, 5, 0, time.UTC)
	if b.Append(NewEntry(now, "a")) {
		t.Fatal("unexpected eviction")
	}
	b.Append(NewEntry(now, "b"))
	got := messages(b.Entries())
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("Entries() = %v", got)
	}
	last, ok := b.Last()
	if !ok || last.Message != "b" {
		t.Fatalf("Last() = %v, %v", last, ok)
	}
	if s := last.String(); s != "[09:04:05] b" {
		t.Fatalf("String() = %q", s)
	}
}

// Any append sequence keeps the most recent Cap() entries in arrival order.
func TestEvictsOldestFirst(t *testing.T) {
	for _, n := range []int{99, 100, 101, 250, 1000} {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			b := New(100)
			evictions := 0
			for i := 0; i < n; i++ {
				if b.Append(Entry{Message: fmt.Sprint(i)}) {
					evictions++
				}
				if b.Len() > 100 {
					t.Fatalf("Len() = %d exceeds capacity", b.Len())
				}
			}
			want := n - 100
			if want < 0 {
				want = 0
			}
			if evictions != want {
				t.Fatalf("evictions = %d, want %d", evictions, want)
			}
			got := messages(b.Entries())
			first := n - len(got)
			for i, m := range got {
				if m != fmt.Sprint(first+i) {
					t.Fatalf("entry %d = %s, want %d", i, m, first+i)
				}
			}
		})
	}
}

func TestReset(t *testing.T) {
	b := New(2)
	b.Append(Entry{Message: "x"})
	b.Append(Entry{Message: "y"})
	b.Append(Entry{Message: "z"})
	b.Reset()
	if b.Len() != 0 {
		t.Fatalf("Len() after Reset = %d", b.Len())
	}
	if _, ok := b.Last(); ok {
		t.Fatal("Last() should report empty buffer")
	}
	b.Append(Entry{Message: "w"})
	if got := messages(b.Entries()); len(got) != 1 || got[0] != "w" {
		t.Fatalf("Entries() after Reset = %v", got)
	}
}

func TestEntriesIsACopy(t *testing.T) {
	b := New(2)
	b.Append(Entry{Message: "x"})
	es := b.Entries()
	es[0].Message = "mutated"
	if got := b.Entries()[0].Message; got != "x" {
		t.Fatalf("buffer mutated through Entries(): %q", got)
	}
}
