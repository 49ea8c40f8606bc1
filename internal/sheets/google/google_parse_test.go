package google

import (
	"reflect"
	"testing"
)

func TestRowOf(t *testing.T) {
	values := [][]interface{}{
		{"ID"},
		{"12"},
		{},
		{13.0},
		{" 14 "},
	}
	tests := []struct {
		id   int64
		want int
	}{
		{12, 2},
		{13, 4},
		{14, 5},
		{99, 0},
	}
	for _, tt := range tests {
		if got := rowOf(values, tt.id); got != tt.want {
			t.Errorf("rowOf(%d) = %d, want %d", tt.id, got, tt.want)
		}
	}
	if got := rowOf(nil, 1); got != 0 {
		t.Errorf("rowOf(nil) = %d", got)
	}
}

func TestColumn(t *testing.T) {
	values := [][]interface{}{
		{"Housing", "Salary"},
		{"Groceries", ""},
		{"# comment", "Bonus"},
		{"Housing"},
		{"", "Salary"},
	}
	if got := column(values, 0); !reflect.DeepEqual(got, []string{"Housing", "Groceries"}) {
		t.Errorf("column 0 = %v", got)
	}
	if got := column(values, 1); !reflect.DeepEqual(got, []string{"Salary", "Bonus"}) {
		t.Errorf("column 1 = %v", got)
	}
}
