// Package sample recognizes the demonstration records that older builds
// shipped with.
//
// Bundled fixtures always used ids inside a small reserved range starting at 1.
// Real records get unix-millisecond ids, so a collection holding any reserved
// id is treated as demo data and discarded on load. This is a migration guard:
// a real record that was ever assigned a reserved id would be purged too.
package sample

import "watchlog/pkg/models"

// Reserved id range, inclusive.
const (
	ReservedMin int64 = 1
	ReservedMax int64 = 4
)

// IsReserved reports whether id belongs to the demo fixture range.
func IsReserved(id int64) bool {
	return id >= ReservedMin && id <= ReservedMax
}

// IsSampleData reports whether any member id of the collection is reserved.
func IsSampleData(ids []int64) bool {
	for _, id := range ids {
		if IsReserved(id) {
			return true
		}
	}
	return false
}

// TitleIDs collects the ids of every title across periods.
func TitleIDs(periods []models.Period) []int64 {
	var ids []int64
	for _, p := range periods {
		for _, t := range p.Titles {
			ids = append(ids, t.ID)
		}
	}
	return ids
}

// CharacterIDs collects the ids of a favorite-character list.
func CharacterIDs(chars []models.Character) []int64 {
	ids := make([]int64, 0, len(chars))
	for _, c := range chars {
		ids = append(ids, c.ID)
	}
	return ids
}
