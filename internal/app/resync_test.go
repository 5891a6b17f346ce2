package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dkeye/Presence/internal/domain"
	"github.com/dkeye/Presence/internal/eventlog"
	"github.com/dkeye/Presence/internal/eventlog/eventlogmock"
	"github.com/dkeye/Presence/internal/wire"
	"go.uber.org/mock/gomock"
)

func fixedNow() time.Time { return time.UnixMilli(1_700_000_000_000) }

func TestResyncQueriesStore(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := eventlogmock.NewMockStore(ctrl)

	want := []domain.Message{{ID: "m1", ChannelID: "c1"}}
	store.EXPECT().
		Since(gomock.Any(), eventlog.Query{
			Since:    time.UnixMilli(1234),
			Channels: []domain.ChannelID{"c1"},
			Limit:    10,
		}).
		Return(want, nil)

	r := NewResync(store, 10)
	r.Now = fixedNow
	got := r.Since(context.Background(), wire.SyncRequest{Since: 1234, ChannelIDs: []domain.ChannelID{"c1"}})

	if len(got.Messages) != 1 || got.Messages[0].ID != "m1" {
		t.Fatalf("messages = %+v, want m1", got.Messages)
	}
	if got.SyncedAt != fixedNow().UnixMilli() {
		t.Fatalf("syncedAt = %d", got.SyncedAt)
	}
}

// TestResyncStoreFailureIsEmpty checks a broken store degrades to an empty
// backfill instead of failing the client.
func TestResyncStoreFailureIsEmpty(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := eventlogmock.NewMockStore(ctrl)
	store.EXPECT().Since(gomock.Any(), gomock.Any()).Return(nil, errors.New("boom"))

	r := NewResync(store, 0)
	r.Now = fixedNow
	got := r.Since(context.Background(), wire.SyncRequest{Since: 1})
	if got.Messages == nil || len(got.Messages) != 0 {
		t.Fatalf("messages = %#v, want empty non-nil", got.Messages)
	}
	if r.Limit != DefaultSyncLimit {
		t.Fatalf("limit = %d, want default", r.Limit)
	}
}

func TestResyncWithoutStore(t *testing.T) {
	r := &Resync{Now: fixedNow}
	got := r.Since(context.Background(), wire.SyncRequest{})
	if got.Messages == nil || got.SyncedAt != fixedNow().UnixMilli() {
		t.Fatalf("got %+v", got)
	}
}
