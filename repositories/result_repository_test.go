package repositories

import (
	"testing"

	"github.com/lib/pq"

	"github.com/Dosada05/tabletennis-bracket/models"
)

func TestSetsColumnLayout(t *testing.T) {
	var sets [models.MaxSets]models.SetScore
	sets[0] = models.SetScore{P1: 11, P2: 7}
	sets[1] = models.SetScore{P1: 9, P2: 11}
	sets[2] = models.SetScore{P1: 14, P2: 12}

	flat := flattenSets(sets)
	if len(flat) != 2*models.MaxSets {
		t.Fatalf("len = %d", len(flat))
	}
	want := pq.Int64Array{11, 7, 9, 11, 14, 12}
	for i, v := range want {
		if flat[i] != v {
			t.Fatalf("flat[%d] = %d, want %d", i, flat[i], v)
		}
	}
	for _, v := range flat[len(want):] {
		if v != 0 {
			t.Fatalf("unplayed sets stored as %v", flat)
		}
	}
	if got := unflattenSets(flat); got != sets {
		t.Fatalf("unflatten = %v", got)
	}

	// rows written before the column default was filled in
	if got := unflattenSets(pq.Int64Array{}); got != ([models.MaxSets]models.SetScore{}) {
		t.Fatalf("empty array = %v", got)
	}
	if got := unflattenSets(pq.Int64Array{11, 5, 3}); got[0] != (models.SetScore{P1: 11, P2: 5}) || got[1] != (models.SetScore{}) {
		t.Fatalf("odd array = %v", got)
	}
}
