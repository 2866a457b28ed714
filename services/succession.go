package services

import (
	"github.com/DkshLuvsDucks/FCS-Project-Fixed-sub000/models"

	"golang.org/x/exp/slices"
)

// DecideSuccessor picks the next group owner from the members remaining after
// the current owner left. Admins win over plain members; within each class
// the earliest-joined member wins, with ties broken by smallest user id.
// ok is false when no members remain and the group is orphaned.
//
// The function is pure: it inspects the snapshot it is given and never
// touches storage, so the removal transaction decides how to apply the
// result.
func DecideSuccessor(remaining []models.GroupChatMember) (successor models.GroupChatMember, ok bool) {
	if len(remaining) == 0 {
		return models.GroupChatMember{}, false
	}

	ordered := slices.Clone(remaining)
	slices.SortFunc(ordered, func(a, b models.GroupChatMember) int {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if a.CreatedAt.Before(b.CreatedAt) {
				return -1
			}
			return 1
		}
		// joins at the same timestamp fall back to user id
		if a.UserID < b.UserID {
			return -1
		}
		if a.UserID > b.UserID {
			return 1
		}
		return 0
	})

	for _, m := range ordered {
		if m.IsAdmin {
			return m, true
		}
	}
	return ordered[0], true
}
