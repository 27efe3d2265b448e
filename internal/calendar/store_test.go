package calendar

import (
	"errors"
	"strings"
	"testing"
)

const testCalendarYAML = `
NFP:
  id: NFP
  name: Nonfarm Payrolls
  source: BLS
  series_id: CEU0000000001
  release_pattern: 1st friday
  release_time: "8:30"
  importance: high
ADP:
  id: ADP
  name: ADP Employment Change
  source: FRED
  series_id: ADPWNUSNERSA
  release_pattern: wed_before_nfp
  release_time: "8:15"
  importance: medium
JOBLESS:
  id: JOBLESS
  name: Initial Jobless Claims
  source: FRED
  series_id: ICSA
  release_pattern: thursday
  release_time: "8:30"
  importance: medium
`

func TestLoadRoundTrip(t *testing.T) {
	t.Parallel()
	st, err := Load([]byte(testCalendarYAML))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if st.Len() != 3 {
		t.Fatalf("Len = %d, want 3", st.Len())
	}

	d, err := st.Get("NFP")
	if err != nil {
		t.Fatalf("Get(NFP) error: %v", err)
	}
	if d.Name != "Nonfarm Payrolls" || d.Source != "BLS" || d.SeriesID != "CEU0000000001" {
		t.Fatalf("unexpected descriptor: %+v", d)
	}
	if d.RawPattern != "1st friday" || d.Pattern.Kind != KindOrdinalWeekday {
		t.Fatalf("unexpected pattern: %+v", d.Pattern)
	}
	if d.ReleaseTime.String() != "08:30" || d.Importance != ImportanceHigh {
		t.Fatalf("unexpected time/importance: %v %v", d.ReleaseTime, d.Importance)
	}

	// Insertion order is preserved.
	var ids []string
	for _, d := range st.All() {
		ids = append(ids, d.ID)
	}
	if got := strings.Join(ids, ","); got != "NFP,ADP,JOBLESS" {
		t.Fatalf("All order = %s", got)
	}
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing field",
			yaml: "NFP:\n  name: Payrolls\n  source: BLS\n  series_id: X\n  release_time: \"8:30\"\n  importance: high\n",
			want: "release_pattern",
		},
		{
			name: "bad pattern",
			yaml: "NFP:\n  name: Payrolls\n  source: BLS\n  series_id: X\n  release_pattern: whenever\n  release_time: \"8:30\"\n  importance: high\n",
			want: "whenever",
		},
		{
			name: "id mismatch",
			yaml: "NFP:\n  id: PAYROLLS\n  name: Payrolls\n  source: BLS\n  series_id: X\n  release_pattern: 1st friday\n  release_time: \"8:30\"\n  importance: high\n",
			want: "does not match",
		},
		{
			name: "unknown reference",
			yaml: "ADP:\n  name: ADP\n  source: FRED\n  series_id: X\n  release_pattern: wed_before_nfp\n  release_time: \"8:15\"\n  importance: medium\n",
			want: "unknown indicator",
		},
		{
			name: "bad importance",
			yaml: "NFP:\n  name: Payrolls\n  source: BLS\n  series_id: X\n  release_pattern: 1st friday\n  release_time: \"8:30\"\n  importance: critical\n",
			want: "importance",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("error type = %T, want *ConfigError", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadCycleDetection(t *testing.T) {
	t.Parallel()
	cyclic := `
A:
  name: A
  source: X
  series_id: S1
  release_pattern: wed_before_b
  release_time: "8:00"
  importance: low
B:
  name: B
  source: X
  series_id: S2
  release_pattern: thu_before_a
  release_time: "9:00"
  importance: low
`
	_, err := Load([]byte(cyclic))
	if err == nil {
		t.Fatal("expected cycle error")
	}
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("error type = %T, want *ConfigError", err)
	}
	if !strings.Contains(err.Error(), "circular") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGetUnknown(t *testing.T) {
	t.Parallel()
	st, err := Load([]byte(testCalendarYAML))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	_, err = st.Get("GDP")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("error type = %T, want *NotFoundError", err)
	}
	if nf.ID != "GDP" {
		t.Fatalf("NotFoundError.ID = %q", nf.ID)
	}
}

func TestLoadDuplicateID(t *testing.T) {
	t.Parallel()
	dup := testCalendarYAML + `
NFP:
  name: Duplicate
  source: BLS
  series_id: X
  release_pattern: 1st friday
  release_time: "8:30"
  importance: high
`
	_, err := Load([]byte(dup))
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("expected duplicate id error, got %v", err)
	}
}
