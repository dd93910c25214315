package storage

import (
	"fmt"
	"strings"
	"time"
)

// Helpers shared by the SQL backends. Both postgres and sqlite select posts
// with the same joins and filters and differ only in placeholders and in how
// timestamps are passed.

// Row is satisfied by pgx.Row, pgx.Rows, *sql.Row and *sql.Rows.
type Row interface {
	Scan(dest ...any) error
}

// Dialect describes the differences between SQL backends.
type Dialect struct {
	// Placeholder returns the n-th (1-based) bind parameter.
	Placeholder func(n int) string
	// Time converts a timestamp into a bind argument.
	Time func(t time.Time) any
}

// PostSelect selects every column ScanPost expects. It must be followed by a
// WHERE clause or ORDER BY.
const PostSelect = `
	SELECT
		p.id, p.title, p.text, p.author_id, p.category_id, p.location_id,
		p.pub_date, p.is_published, p.created_at,
		u.username, u.first_name, u.last_name, u.email,
		c.title, c.description, c.slug, c.is_published,
		l.name, l.is_published,
		(SELECT COUNT(*) FROM comments cm WHERE cm.post_id = p.id)
	FROM posts p
	JOIN users u ON u.id = p.author_id
	LEFT JOIN categories c ON c.id = p.category_id
	LEFT JOIN locations l ON l.id = p.location_id
`

// PostOrder is the feed ordering with a stable tie-break.
const PostOrder = ` ORDER BY p.pub_date DESC, p.id DESC`

// ScanPost reads one row selected with PostSelect.
func ScanPost(row Row) (Post, error) {
	var (
		p       Post
		catT    *string
		catD    *string
		catS    *string
		catP    *bool
		locName *string
		locP    *bool
	)
	err := row.Scan(
		&p.ID, &p.Title, &p.Text, &p.AuthorID, &p.CategoryID, &p.LocationID,
		&p.PubDate, &p.IsPublished, &p.Created,
		&p.Author.Username, &p.Author.FirstName, &p.Author.LastName, &p.Author.Email,
		&catT, &catD, &catS, &catP,
		&locName, &locP,
		&p.CommentCount,
	)
	if err != nil {
		return Post{}, err
	}

	p.Author.ID = p.AuthorID
	p.PubDate = p.PubDate.UTC()
	p.Created = p.Created.UTC()
	if p.CategoryID != nil && catS != nil {
		p.Category = &Category{
			ID:          *p.CategoryID,
			Title:       deref(catT),
			Description: deref(catD),
			Slug:        *catS,
			IsPublished: catP != nil && *catP,
		}
	}
	if p.LocationID != nil && locName != nil {
		p.Location = &Location{
			ID:          *p.LocationID,
			Name:        *locName,
			IsPublished: locP != nil && *locP,
		}
	}

	return p, nil
}

// PostWhere renders the WHERE clause for q starting at placeholder number
// first and returns it with its arguments. The clause is empty when q has no
// filters.
func PostWhere(d Dialect, q PostQuery, first int) (string, []any) {
	var (
		conds []string
		args  []any
	)
	next := func(v any) string {
		args = append(args, v)
		return d.Placeholder(first + len(args) - 1)
	}

	if q.CategoryID != 0 {
		conds = append(conds, "p.category_id = "+next(q.CategoryID))
	}
	if q.AuthorID != 0 {
		conds = append(conds, "p.author_id = "+next(q.AuthorID))
	}
	if q.PublicOnly {
		conds = append(conds, fmt.Sprintf(
			"p.is_published AND p.pub_date < %s AND (p.category_id IS NULL OR c.is_published)",
			next(d.Time(q.Now)),
		))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
