package app

import (
	"reflect"
	"testing"

	"horse.fit/verso/internal/db"
)

func TestParseStatuses(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		want    []db.SegmentStatus
		wantErr bool
	}{
		{name: "empty", raw: "", want: nil},
		{name: "blank", raw: "   ", want: nil},
		{
			name: "single",
			raw:  "translated",
			want: []db.SegmentStatus{db.SegmentStatusTranslated},
		},
		{
			name: "list with spaces",
			raw:  "translated, review_failed",
			want: []db.SegmentStatus{db.SegmentStatusTranslated, db.SegmentStatusReviewFailed},
		},
		{name: "unknown status", raw: "approved", wantErr: true},
		{name: "unknown among known", raw: "translated,approved", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := parseStatuses(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseStatuses(%q) = %v, want error", tt.raw, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseStatuses(%q) error = %v", tt.raw, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("parseStatuses(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}
