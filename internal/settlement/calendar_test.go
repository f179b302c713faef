package settlement

import (
	"testing"
	"time"

	"github.com/wonny/pricebattle/internal/contracts"
)

func TestTargetDate(t *testing.T) {
	tests := []struct {
		name    string
		issue   contracts.Date
		horizon int
		want    contracts.Date
	}{
		{"monday", contracts.NewDate(2024, time.January, 1), 5, contracts.NewDate(2024, time.January, 8)},
		{"thursday", contracts.NewDate(2024, time.January, 4), 5, contracts.NewDate(2024, time.January, 11)},
		{"friday", contracts.NewDate(2024, time.January, 5), 5, contracts.NewDate(2024, time.January, 12)},
		{"friday march", contracts.NewDate(2024, time.March, 1), 5, contracts.NewDate(2024, time.March, 8)},
		{"saturday issue rolls to monday", contracts.NewDate(2024, time.January, 6), 5, contracts.NewDate(2024, time.January, 15)},
		{"sunday issue rolls to monday", contracts.NewDate(2024, time.January, 7), 5, contracts.NewDate(2024, time.January, 15)},
		{"month boundary", contracts.NewDate(2024, time.January, 29), 5, contracts.NewDate(2024, time.February, 5)},
		{"leap day", contracts.NewDate(2024, time.February, 26), 5, contracts.NewDate(2024, time.March, 4)},
		{"zero horizon uses default", contracts.NewDate(2024, time.January, 1), 0, contracts.NewDate(2024, time.January, 8)},
		{"one day from friday", contracts.NewDate(2024, time.January, 5), 1, contracts.NewDate(2024, time.January, 8)},
		{"three days from thursday", contracts.NewDate(2024, time.January, 4), 3, contracts.NewDate(2024, time.January, 9)},
		{"ten days", contracts.NewDate(2024, time.January, 1), 10, contracts.NewDate(2024, time.January, 15)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TargetDate(tt.issue, tt.horizon)
			if !got.Equal(tt.want) {
				t.Errorf("TargetDate(%s, %d) = %s, want %s", tt.issue, tt.horizon, got, tt.want)
			}
			if !got.After(tt.issue) {
				t.Errorf("target %s not after issue %s", got, tt.issue)
			}
		})
	}
}

func TestTargetDate_NeverWeekend(t *testing.T) {
	start := contracts.NewDate(2024, time.January, 1)
	for i := 0; i < 366; i++ {
		issue := start.AddDays(i)
		for _, h := range []int{1, 2, 3, 4, 5, 7, 10} {
			got := TargetDate(issue, h)
			if wd := got.Weekday(); wd == time.Saturday || wd == time.Sunday {
				t.Fatalf("TargetDate(%s, %d) = %s lands on %s", issue, h, got, wd)
			}
		}
	}
}
