package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func openTestStore(t testing.TB, file string) Store {
	database, err := OpenDB(context.Background(), Config{File: file})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { database.Close() })
	return NewStore(database)
}

func TestStore(t *testing.T) {
	store := openTestStore(t, ":memory:")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	ist := time.FixedZone("IST", 5*60*60+30*60)
	base := time.Date(2026, time.March, 2, 9, 30, 0, 0, ist)

	{
		res, err := store.List(ctx, "", 10, ist)
		if err != nil {
			t.Fatal(err)
		}
		require.Len(t, res, 0)

		_, found, err := store.Last(ctx, KindLogin, ist)
		require.NoError(t, err)
		require.False(t, found)
	}

	runs := []Run{
		{ID: "a", Kind: KindCheck, StartedAt: base.Add(-time.Hour), Duration: 120 * time.Millisecond, Ok: true},
		{ID: "b", Kind: KindLogin, StartedAt: base, Duration: 900 * time.Millisecond, Ok: true},
		{ID: "c", Kind: KindLogout, StartedAt: base.Add(9 * time.Hour), Duration: time.Second, Ok: false, Error: "logout: could not find anti-forgery token"},
	}
	for _, r := range runs {
		require.NoError(t, store.Record(ctx, r))
	}

	{
		res, err := store.List(ctx, "", 10, ist)
		require.NoError(t, err)
		expect := []Run{runs[2], runs[1], runs[0]}
		if diff := cmp.Diff(expect, res); diff != "" {
			t.Fatalf("unexpected runs (-want +got):\n%s", diff)
		}
	}
	{
		res, err := store.List(ctx, KindLogin, 10, ist)
		require.NoError(t, err)
		require.Len(t, res, 1)
		require.Equal(t, "b", res[0].ID)
	}
	{
		res, err := store.List(ctx, "", 2, ist)
		require.NoError(t, err)
		require.Len(t, res, 2)
	}
	{
		last, found, err := store.Last(ctx, KindLogout, ist)
		require.NoError(t, err)
		require.True(t, found)
		require.False(t, last.Ok)
		require.Contains(t, last.Error, "anti-forgery")
	}
	{
		n, err := store.Prune(ctx, base)
		require.NoError(t, err)
		require.EqualValues(t, 1, n)
	}

	_, err := store.List(ctx, "", 0, ist)
	require.Error(t, err)
}

func TestRecordGeneratesID(t *testing.T) {
	store := openTestStore(t, filepath.Join(t.TempDir(), "nested", "journal.db"))
	ctx := context.Background()

	require.NoError(t, store.Record(ctx, Run{Kind: KindCheck, StartedAt: time.Now(), Ok: true}))
	require.NoError(t, store.Record(ctx, Run{Kind: KindCheck, StartedAt: time.Now(), Ok: true}))

	res, err := store.List(ctx, KindCheck, 10, time.UTC)
	require.NoError(t, err)
	require.Len(t, res, 2)
	require.Len(t, res[0].ID, 12)
	require.NotEqual(t, res[0].ID, res[1].ID)
}

func TestOpenDBRequiresTarget(t *testing.T) {
	_, err := OpenDB(context.Background(), Config{})
	require.ErrorContains(t, err, "neither file nor url")
	require.False(t, Config{}.Enabled())
}
