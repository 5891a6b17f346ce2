package eventlog_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/dkeye/Presence/internal/domain"
	"github.com/dkeye/Presence/internal/eventlog"
	"github.com/dkeye/Presence/internal/eventlog/eventlogmock"
	"go.uber.org/mock/gomock"
)

var base = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func msg(i int, channel string) domain.Message {
	return domain.Message{
		ID:         fmt.Sprintf("m%d", i),
		ServerID:   "s1",
		ChannelID:  domain.ChannelID(channel),
		AuthorID:   "u1",
		AuthorName: "alice",
		Content:    fmt.Sprintf("hello %d", i),
		CreatedAt:  base.Add(time.Duration(i) * time.Second),
	}
}

func ids(msgs []domain.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// storeContract runs the behaviour both backends must share.
func storeContract(t *testing.T, s eventlog.Store) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		ch := "c1"
		if i%2 == 1 {
			ch = "c2"
		}
		if err := s.Append(ctx, msg(i, ch)); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	got, err := s.Since(ctx, eventlog.Query{Since: base.Add(2 * time.Second)})
	if err != nil {
		t.Fatalf("since: %v", err)
	}
	if want := []string{"m2", "m3", "m4"}; !equal(ids(got), want) {
		t.Fatalf("since all channels = %v, want %v", ids(got), want)
	}

	got, err = s.Since(ctx, eventlog.Query{Since: base, Channels: []domain.ChannelID{"c2"}})
	if err != nil {
		t.Fatalf("since c2: %v", err)
	}
	if want := []string{"m1", "m3"}; !equal(ids(got), want) {
		t.Fatalf("since c2 = %v, want %v", ids(got), want)
	}

	got, err = s.Since(ctx, eventlog.Query{Since: base, Limit: 2})
	if err != nil {
		t.Fatalf("since limit: %v", err)
	}
	if want := []string{"m3", "m4"}; !equal(ids(got), want) {
		t.Fatalf("limited = %v, want newest two %v", ids(got), want)
	}

	got, err = s.Since(ctx, eventlog.Query{Since: base.Add(time.Hour)})
	if err != nil {
		t.Fatalf("since future: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("future query = %#v, want empty non-nil slice", got)
	}
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, eventlog.NewMemoryStore(16))
}

func TestSQLiteStore(t *testing.T) {
	s, err := eventlog.OpenSQLite(filepath.Join(t.TempDir(), "log.sqlite"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	storeContract(t, s)
}

func TestSQLiteStoreRoundTripsFields(t *testing.T) {
	s, err := eventlog.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	in := msg(7, "c1")
	ctx := context.Background()
	if err := s.Append(ctx, in); err != nil {
		t.Fatalf("append: %v", err)
	}
	// duplicate ids are ignored
	if err := s.Append(ctx, in); err != nil {
		t.Fatalf("append duplicate: %v", err)
	}
	got, err := s.Since(ctx, eventlog.Query{})
	if err != nil {
		t.Fatalf("since: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d messages, want 1", len(got))
	}
	out := got[0]
	if !out.CreatedAt.Equal(in.CreatedAt) {
		t.Fatalf("created_at = %v, want %v", out.CreatedAt, in.CreatedAt)
	}
	out.CreatedAt = in.CreatedAt
	if out != in {
		t.Fatalf("round trip = %+v, want %+v", out, in)
	}
}

// TestMemoryStoreOverwritesOldest checks the ring keeps only the newest entries.
func TestMemoryStoreOverwritesOldest(t *testing.T) {
	s := eventlog.NewMemoryStore(3)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_ = s.Append(ctx, msg(i, "c1"))
	}
	if s.Len() != 3 {
		t.Fatalf("len = %d, want 3", s.Len())
	}
	got, _ := s.Since(ctx, eventlog.Query{})
	if want := []string{"m2", "m3", "m4"}; !equal(ids(got), want) {
		t.Fatalf("ring = %v, want %v", ids(got), want)
	}
}

func TestMemoryStoreClosed(t *testing.T) {
	s := eventlog.NewMemoryStore(2)
	_ = s.Close()
	if err := s.Append(context.Background(), msg(1, "c1")); !errors.Is(err, eventlog.ErrClosed) {
		t.Fatalf("append after close = %v, want ErrClosed", err)
	}
	if _, err := s.Since(context.Background(), eventlog.Query{}); !errors.Is(err, eventlog.ErrClosed) {
		t.Fatalf("since after close = %v, want ErrClosed", err)
	}
}

func TestRecorderFlushesOnStop(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := eventlogmock.NewMockStore(ctrl)

	first, second := msg(1, "c1"), msg(2, "c1")
	gomock.InOrder(
		store.EXPECT().Append(gomock.Any(), first).Return(nil),
		store.EXPECT().Append(gomock.Any(), second).Return(errors.New("disk full")),
	)

	r := eventlog.NewRecorder(store, 4)
	if !r.Record(first) || !r.Record(second) {
		t.Fatal("record rejected with free buffer")
	}
	go r.Run()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := r.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if r.Record(msg(3, "c1")) {
		t.Fatal("record accepted after stop")
	}
}

func TestRecorderDropsWhenFull(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := eventlogmock.NewMockStore(ctrl)
	store.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	r := eventlog.NewRecorder(store, 1)
	if !r.Record(msg(1, "c1")) {
		t.Fatal("first record rejected")
	}
	if r.Record(msg(2, "c1")) {
		t.Fatal("second record accepted with full buffer")
	}
	go r.Run()
	if err := r.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
}
