package chrono

import (
	"context"
	"testing"
	"time"

	"activity-keeper/internal/components/telemetry"

	"github.com/stretchr/testify/require"
)

func TestNextRuns(t *testing.T) {
	ist, err := time.LoadLocation(DefaultTimezone)
	if err != nil {
		t.Fatal(err)
	}

	table := []struct {
		spec  string
		after time.Time
		n     int
		want  []time.Time
	}{
		{
			// Saturday evening, the next login skips Sunday
			spec:  "30 9 * * 1-6",
			after: time.Date(2026, time.March, 7, 20, 0, 0, 0, ist),
			n:     2,
			want: []time.Time{
				time.Date(2026, time.March, 9, 9, 30, 0, 0, ist),
				time.Date(2026, time.March, 10, 9, 30, 0, 0, ist),
			},
		},
		{
			spec:  "30 18 * * 1-6",
			after: time.Date(2026, time.March, 2, 18, 30, 0, 0, ist),
			n:     1,
			want: []time.Time{
				time.Date(2026, time.March, 3, 18, 30, 0, 0, ist),
			},
		},
		{
			spec:  "*/30 * * * *",
			after: time.Date(2026, time.March, 8, 23, 45, 0, 0, ist),
			n:     3,
			want: []time.Time{
				time.Date(2026, time.March, 9, 0, 0, 0, 0, ist),
				time.Date(2026, time.March, 9, 0, 30, 0, 0, ist),
				time.Date(2026, time.March, 9, 1, 0, 0, 0, ist),
			},
		},
	}

	for _, tc := range table {
		t.Run(tc.spec, func(t *testing.T) {
			got, err := NextRuns(tc.spec, tc.after, tc.n)
			require.NoError(t, err)
			require.Len(t, got, len(tc.want))
			for i := range tc.want {
				require.True(t, tc.want[i].Equal(got[i]), "run %d: want %v, got %v", i, tc.want[i], got[i])
				require.Equal(t, ist, got[i].Location())
			}
		})
	}
}

func TestNextRunsFailure(t *testing.T) {
	_, err := NextRuns("invalid cron", time.Now(), 3)
	require.Error(t, err)

	_, err = NextRuns("0 0 * * *", time.Now(), 0)
	require.Error(t, err)

	require.Error(t, ValidateSpec("61 * * * *"))
	require.NoError(t, ValidateSpec("@hourly"))
}

func TestStandardCron(t *testing.T) {
	rec := &telemetry.Recorder{}
	cron := NewStandardCron(rec, time.UTC)

	fired := make(chan struct{}, 1)
	require.NoError(t, cron.Cron("@every 1s", func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	}))
	require.Error(t, cron.Cron("not a spec", func() {}))

	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatal("job never fired")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, cron.Stop(ctx))
}

func TestStandardTime(t *testing.T) {
	clock, err := NewStandardTime("")
	require.NoError(t, err)
	require.Equal(t, DefaultTimezone, clock.Location().String())
	require.Equal(t, DefaultTimezone, clock.Now().Location().String())

	_, err = NewStandardTime("Mars/Olympus_Mons")
	require.Error(t, err)
}
