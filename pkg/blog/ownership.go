package blog

import "blogicum/pkg/storage"

// Owned is implemented by resources that have a single author.
type Owned interface {
	Owner() int64
}

// CanMutate reports whether user may edit or delete r. Anonymous users never can.
func CanMutate(r Owned, user *storage.User) bool {
	if user == nil || user.ID == 0 {
		return false
	}
	return r.Owner() == user.ID
}
