package models

import (
	"errors"
	"testing"
)

func TestSearchQuery_Validate(t *testing.T) {
	tests := []struct {
		name     string
		query    *SearchQuery
		wantErr  bool
		wantTopK int
	}{
		{"empty question", &SearchQuery{Question: ""}, true, 0},
		{"whitespace question", &SearchQuery{Question: " \t\n"}, true, 0},
		{"sets default top_k", &SearchQuery{Question: "x"}, false, 3},
		{"keeps explicit top_k", &SearchQuery{Question: "x", TopK: 5}, false, 5},
		{"caps top_k", &SearchQuery{Question: "x", TopK: 500}, false, 50},
		{"negative top_k", &SearchQuery{Question: "x", TopK: -1}, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate(3, 50)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidArgument) {
					t.Errorf("error %v should wrap ErrInvalidArgument", err)
				}
				return
			}
			if tt.query.TopK != tt.wantTopK {
				t.Errorf("TopK = %d, want %d", tt.query.TopK, tt.wantTopK)
			}
		})
	}
}

func TestSearchQuery_ValidateNoMax(t *testing.T) {
	q := &SearchQuery{Question: "x", TopK: 1000}
	if err := q.Validate(3, 0); err != nil {
		t.Fatal(err)
	}
	if q.TopK != 1000 {
		t.Errorf("TopK = %d, want 1000 when max is disabled", q.TopK)
	}
}
