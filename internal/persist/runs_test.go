package persist

import (
	"context"
	"testing"
	"time"

	"github.com/zulandar/skimmer/internal/models"
)

func TestGormRuns_SaveAndRecent(t *testing.T) {
	ctx := context.Background()
	runs := NewGormRuns(testDB(t))
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"run-a", "run-b", "run-c"} {
		err := runs.SaveRun(ctx, models.Run{
			ID:        id,
			ChannelID: "C1",
			Phase:     "scrolling",
			StartedAt: base.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("SaveRun(%s): %v", id, err)
		}
	}

	finished := base.Add(90 * time.Minute)
	if err := runs.SaveRun(ctx, models.Run{
		ID:         "run-b",
		ChannelID:  "C1",
		Phase:      "completed",
		Messages:   42,
		StartedAt:  base.Add(time.Hour),
		FinishedAt: &finished,
	}); err != nil {
		t.Fatalf("SaveRun update: %v", err)
	}

	got, err := runs.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 || got[0].ID != "run-c" || got[1].ID != "run-b" {
		t.Fatalf("Recent = %+v, want run-c, run-b", got)
	}
	if got[1].Phase != "completed" || got[1].Messages != 42 || got[1].FinishedAt == nil {
		t.Errorf("updated run = %+v", got[1])
	}
}
