// Package blog holds the publication and ownership rules shared by every page
// and the feed pipeline built on top of them.
package blog

import (
	"time"

	"blogicum/pkg/storage"
)

// IsVisible reports whether the post may be shown to the general public at now.
// A post scheduled exactly at now is not visible yet.
func IsVisible(p storage.Post, now time.Time) bool {
	if !p.IsPublished || !p.PubDate.Before(now) {
		return false
	}
	return p.Category == nil || p.Category.IsPublished
}

// VisibleTo reports whether user may open the post detail page.
// Authors always see their own posts.
func VisibleTo(p storage.Post, user *storage.User, now time.Time) bool {
	if CanMutate(p, user) {
		return true
	}
	return IsVisible(p, now)
}
