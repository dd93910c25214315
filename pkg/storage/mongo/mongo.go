// Package mongo implements storage.Storage on MongoDB. Records keep integer ids
// drawn from a counters collection so that URLs look the same on every backend.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"blogicum/pkg/storage"
)

const (
	collUsers      = "users"
	collSessions   = "sessions"
	collCategories = "categories"
	collLocations  = "locations"
	collPosts      = "posts"
	collComments   = "comments"
	collCounters   = "counters"
)

type Storage struct {
	client *mongo.Client
	dbName string
}

func New(ctx context.Context, conf *Config) (*Storage, error) {
	client, err := mongo.Connect(ctx, conf.Options())
	if err != nil {
		return nil, err
	}

	s := Storage{client: client, dbName: conf.DBName}
	if err := s.createIndexes(ctx); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("create indexes: %w", err)
	}

	return &s, nil
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Storage) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.client.Disconnect(ctx)
}

func (s *Storage) coll(name string) *mongo.Collection {
	return s.client.Database(s.dbName).Collection(name)
}

func (s *Storage) createIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	indexes := map[string][]mongo.IndexModel{
		collUsers:      {{Keys: bson.D{{Key: "username", Value: 1}}, Options: unique}},
		collCategories: {{Keys: bson.D{{Key: "slug", Value: 1}}, Options: unique}},
		collPosts: {
			{Keys: bson.D{{Key: "pub_date", Value: -1}, {Key: "_id", Value: -1}}},
			{Keys: bson.D{{Key: "author_id", Value: 1}}},
		},
		collComments: {{Keys: bson.D{{Key: "post_id", Value: 1}, {Key: "created_at", Value: 1}}}},
	}
	for name, models := range indexes {
		if _, err := s.coll(name).Indexes().CreateMany(ctx, models); err != nil {
			return err
		}
	}
	return nil
}

// nextID atomically increments and returns the counter for collection name.
func (s *Storage) nextID(ctx context.Context, name string) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	err := s.coll(collCounters).FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": 1}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("next %s id: %w", name, err)
	}
	return counter.Seq, nil
}

func (s *Storage) exists(ctx context.Context, coll string, id int64) error {
	n, err := s.coll(coll).CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %d", storage.ErrNotFound, coll, id)
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return storage.ErrNotFound
	}
	return err
}

// bson stores milliseconds; round every timestamp the same way on the way in.
func msec(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

func (s *Storage) AddUser(ctx context.Context, u storage.User) (storage.User, error) {
	id, err := s.nextID(ctx, collUsers)
	if err != nil {
		return storage.User{}, err
	}
	u.ID = id
	if u.Joined.IsZero() {
		u.Joined = time.Now()
	}
	u.Joined = msec(u.Joined)

	_, err = s.coll(collUsers).InsertOne(ctx, toUserDoc(u))
	if mongo.IsDuplicateKeyError(err) {
		return storage.User{}, storage.ErrUsernameTaken
	}
	if err != nil {
		return storage.User{}, err
	}

	return u, nil
}

func (s *Storage) User(ctx context.Context, id int64) (storage.User, error) {
	return s.findUser(ctx, bson.M{"_id": id})
}

func (s *Storage) UserByUsername(ctx context.Context, username string) (storage.User, error) {
	return s.findUser(ctx, bson.M{"username": username})
}

func (s *Storage) findUser(ctx context.Context, filter bson.M) (storage.User, error) {
	var doc userDoc
	if err := s.coll(collUsers).FindOne(ctx, filter).Decode(&doc); err != nil {
		return storage.User{}, notFound(err)
	}
	return doc.user(), nil
}

func (s *Storage) UpdateUser(ctx context.Context, u storage.User) error {
	res, err := s.coll(collUsers).UpdateByID(ctx, u.ID, bson.M{"$set": bson.M{
		"username":   u.Username,
		"first_name": u.FirstName,
		"last_name":  u.LastName,
		"email":      u.Email,
	}})
	if mongo.IsDuplicateKeyError(err) {
		return storage.ErrUsernameTaken
	}
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return storage.ErrNotFound
	}

	return nil
}

func (s *Storage) AddSession(ctx context.Context, sess storage.Session) error {
	_, err := s.coll(collSessions).InsertOne(ctx, sessionDoc{
		Token:   sess.Token,
		UserID:  sess.UserID,
		Expires: msec(sess.Expires),
	})
	return err
}

func (s *Storage) Session(ctx context.Context, token string) (storage.Session, error) {
	var doc sessionDoc
	if err := s.coll(collSessions).FindOne(ctx, bson.M{"_id": token}).Decode(&doc); err != nil {
		return storage.Session{}, notFound(err)
	}
	return storage.Session{Token: doc.Token, UserID: doc.UserID, Expires: doc.Expires.UTC()}, nil
}

func (s *Storage) DeleteSession(ctx context.Context, token string) error {
	_, err := s.coll(collSessions).DeleteOne(ctx, bson.M{"_id": token})
	return err
}

func (s *Storage) AddCategory(ctx context.Context, c storage.Category) (storage.Category, error) {
	id, err := s.nextID(ctx, collCategories)
	if err != nil {
		return storage.Category{}, err
	}
	c.ID = id
	if c.Created.IsZero() {
		c.Created = time.Now()
	}
	c.Created = msec(c.Created)

	_, err = s.coll(collCategories).InsertOne(ctx, toCategoryDoc(c))
	if mongo.IsDuplicateKeyError(err) {
		return storage.Category{}, storage.ErrSlugTaken
	}
	if err != nil {
		return storage.Category{}, err
	}

	return c, nil
}

func (s *Storage) CategoryBySlug(ctx context.Context, slug string) (storage.Category, error) {
	var doc categoryDoc
	if err := s.coll(collCategories).FindOne(ctx, bson.M{"slug": slug}).Decode(&doc); err != nil {
		return storage.Category{}, notFound(err)
	}
	return doc.category(), nil
}

func (s *Storage) Categories(ctx context.Context) ([]storage.Category, error) {
	opts := options.Find().SetSort(bson.D{{Key: "title", Value: 1}})
	cur, err := s.coll(collCategories).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}

	var docs []categoryDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	cats := make([]storage.Category, 0, len(docs))
	for _, d := range docs {
		cats = append(cats, d.category())
	}
	return cats, nil
}

func (s *Storage) AddLocation(ctx context.Context, l storage.Location) (storage.Location, error) {
	id, err := s.nextID(ctx, collLocations)
	if err != nil {
		return storage.Location{}, err
	}
	l.ID = id
	if l.Created.IsZero() {
		l.Created = time.Now()
	}
	l.Created = msec(l.Created)

	if _, err := s.coll(collLocations).InsertOne(ctx, toLocationDoc(l)); err != nil {
		return storage.Location{}, err
	}

	return l, nil
}

func (s *Storage) Locations(ctx context.Context) ([]storage.Location, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cur, err := s.coll(collLocations).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}

	var docs []locationDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	locs := make([]storage.Location, 0, len(docs))
	for _, d := range docs {
		locs = append(locs, d.location())
	}
	return locs, nil
}

func (s *Storage) checkRefs(ctx context.Context, p storage.Post) error {
	if p.CategoryID != nil {
		if err := s.exists(ctx, collCategories, *p.CategoryID); err != nil {
			return err
		}
	}
	if p.LocationID != nil {
		if err := s.exists(ctx, collLocations, *p.LocationID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Storage) AddPost(ctx context.Context, p storage.Post) (storage.Post, error) {
	if err := s.exists(ctx, collUsers, p.AuthorID); err != nil {
		return storage.Post{}, err
	}
	if err := s.checkRefs(ctx, p); err != nil {
		return storage.Post{}, err
	}

	id, err := s.nextID(ctx, collPosts)
	if err != nil {
		return storage.Post{}, err
	}
	p.ID = id
	if p.Created.IsZero() {
		p.Created = time.Now()
	}

	if _, err := s.coll(collPosts).InsertOne(ctx, toPostDoc(p)); err != nil {
		return storage.Post{}, err
	}

	return s.Post(ctx, id)
}

func (s *Storage) Post(ctx context.Context, id int64) (storage.Post, error) {
	var doc postDoc
	if err := s.coll(collPosts).FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return storage.Post{}, notFound(err)
	}

	posts, err := s.hydrate(ctx, []postDoc{doc})
	if err != nil {
		return storage.Post{}, err
	}
	return posts[0], nil
}

func (s *Storage) UpdatePost(ctx context.Context, p storage.Post) error {
	if err := s.checkRefs(ctx, p); err != nil {
		return err
	}

	res, err := s.coll(collPosts).UpdateByID(ctx, p.ID, bson.M{"$set": bson.M{
		"title":        p.Title,
		"text":         p.Text,
		"category_id":  p.CategoryID,
		"location_id":  p.LocationID,
		"pub_date":     msec(p.PubDate),
		"is_published": p.IsPublished,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return storage.ErrNotFound
	}

	return nil
}

func (s *Storage) DeletePost(ctx context.Context, id int64) error {
	res, err := s.coll(collPosts).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return storage.ErrNotFound
	}

	_, err = s.coll(collComments).DeleteMany(ctx, bson.M{"post_id": id})
	return err
}

// Posts returns a page of posts matching q together with the total number of pages.
// Hidden categories are resolved first and excluded with $nin, since documents
// carry only the category id.
func (s *Storage) Posts(ctx context.Context, q storage.PostQuery) (posts []storage.Post, numPages int, err error) {
	q = q.Normalize()

	conds := bson.A{}
	if q.CategoryID != 0 {
		conds = append(conds, bson.M{"category_id": q.CategoryID})
	}
	if q.AuthorID != 0 {
		conds = append(conds, bson.M{"author_id": q.AuthorID})
	}
	if q.PublicOnly {
		hidden, err := s.hiddenCategoryIDs(ctx)
		if err != nil {
			return nil, 0, err
		}
		conds = append(conds,
			bson.M{"is_published": true},
			bson.M{"pub_date": bson.M{"$lt": q.Now.UTC()}},
			bson.M{"category_id": bson.M{"$nin": hidden}},
		)
	}
	filter := bson.M{}
	if len(conds) > 0 {
		filter = bson.M{"$and": conds}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "pub_date", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(q.Offset())).
		SetLimit(int64(q.Limit))

	cur, err := s.coll(collPosts).Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	var docs []postDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, err
	}

	total, err := s.coll(collPosts).CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	posts, err = s.hydrate(ctx, docs)
	if err != nil {
		return nil, 0, err
	}
	return posts, q.NumPages(int(total)), nil
}

func (s *Storage) hiddenCategoryIDs(ctx context.Context) (bson.A, error) {
	ids, err := s.coll(collCategories).Distinct(ctx, "_id", bson.M{"is_published": false})
	if err != nil {
		return nil, err
	}
	if ids == nil {
		return bson.A{}, nil
	}
	return bson.A(ids), nil
}

// hydrate loads authors, categories, locations and comment counts for docs.
func (s *Storage) hydrate(ctx context.Context, docs []postDoc) ([]storage.Post, error) {
	posts := make([]storage.Post, 0, len(docs))
	if len(docs) == 0 {
		return posts, nil
	}

	var postIDs, userIDs, catIDs, locIDs bson.A
	for _, d := range docs {
		postIDs = append(postIDs, d.ID)
		userIDs = append(userIDs, d.AuthorID)
		if d.CategoryID != nil {
			catIDs = append(catIDs, *d.CategoryID)
		}
		if d.LocationID != nil {
			locIDs = append(locIDs, *d.LocationID)
		}
	}

	var users []userDoc
	if err := s.findIn(ctx, collUsers, userIDs, &users); err != nil {
		return nil, err
	}
	usersByID := make(map[int64]storage.User, len(users))
	for _, u := range users {
		usersByID[u.ID] = u.user()
	}

	var cats []categoryDoc
	if err := s.findIn(ctx, collCategories, catIDs, &cats); err != nil {
		return nil, err
	}
	catsByID := make(map[int64]storage.Category, len(cats))
	for _, c := range cats {
		catsByID[c.ID] = c.category()
	}

	var locs []locationDoc
	if err := s.findIn(ctx, collLocations, locIDs, &locs); err != nil {
		return nil, err
	}
	locsByID := make(map[int64]storage.Location, len(locs))
	for _, l := range locs {
		locsByID[l.ID] = l.location()
	}

	counts, err := s.commentCounts(ctx, postIDs)
	if err != nil {
		return nil, err
	}

	for _, d := range docs {
		p := d.post()
		p.Author = usersByID[d.AuthorID]
		if d.CategoryID != nil {
			if c, ok := catsByID[*d.CategoryID]; ok {
				p.Category = &c
			}
		}
		if d.LocationID != nil {
			if l, ok := locsByID[*d.LocationID]; ok {
				p.Location = &l
			}
		}
		p.CommentCount = counts[d.ID]
		posts = append(posts, p)
	}

	return posts, nil
}

func (s *Storage) findIn(ctx context.Context, coll string, ids bson.A, result any) error {
	if len(ids) == 0 {
		return nil
	}
	cur, err := s.coll(coll).Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return err
	}
	return cur.All(ctx, result)
}

func (s *Storage) commentCounts(ctx context.Context, postIDs bson.A) (map[int64]int, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"post_id": bson.M{"$in": postIDs}}}},
		{{Key: "$group", Value: bson.M{"_id": "$post_id", "n": bson.M{"$sum": 1}}}},
	}
	cur, err := s.coll(collComments).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		PostID int64 `bson:"_id"`
		N      int   `bson:"n"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}

	counts := make(map[int64]int, len(rows))
	for _, r := range rows {
		counts[r.PostID] = r.N
	}
	return counts, nil
}

func (s *Storage) AddComment(ctx context.Context, c storage.Comment) (storage.Comment, error) {
	if err := s.exists(ctx, collPosts, c.PostID); err != nil {
		return storage.Comment{}, err
	}
	if err := s.exists(ctx, collUsers, c.AuthorID); err != nil {
		return storage.Comment{}, err
	}

	id, err := s.nextID(ctx, collComments)
	if err != nil {
		return storage.Comment{}, err
	}
	c.ID = id
	if c.Created.IsZero() {
		c.Created = time.Now()
	}

	if _, err := s.coll(collComments).InsertOne(ctx, toCommentDoc(c)); err != nil {
		return storage.Comment{}, err
	}

	return s.Comment(ctx, id)
}

func (s *Storage) Comment(ctx context.Context, id int64) (storage.Comment, error) {
	var doc commentDoc
	if err := s.coll(collComments).FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return storage.Comment{}, notFound(err)
	}

	c := doc.comment()
	author, err := s.User(ctx, c.AuthorID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return storage.Comment{}, err
	}
	c.Author = author
	return c, nil
}

func (s *Storage) UpdateComment(ctx context.Context, c storage.Comment) error {
	res, err := s.coll(collComments).UpdateByID(ctx, c.ID, bson.M{"$set": bson.M{"text": c.Text}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return storage.ErrNotFound
	}

	return nil
}

func (s *Storage) DeleteComment(ctx context.Context, id int64) error {
	res, err := s.coll(collComments).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return storage.ErrNotFound
	}

	return nil
}

// Comments returns the comments of a post, oldest first.
func (s *Storage) Comments(ctx context.Context, postID int64) ([]storage.Comment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.coll(collComments).Find(ctx, bson.M{"post_id": postID}, opts)
	if err != nil {
		return nil, err
	}

	var docs []commentDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	var userIDs bson.A
	for _, d := range docs {
		userIDs = append(userIDs, d.AuthorID)
	}
	var users []userDoc
	if err := s.findIn(ctx, collUsers, userIDs, &users); err != nil {
		return nil, err
	}
	usersByID := make(map[int64]storage.User, len(users))
	for _, u := range users {
		usersByID[u.ID] = u.user()
	}

	comments := make([]storage.Comment, 0, len(docs))
	for _, d := range docs {
		c := d.comment()
		c.Author = usersByID[c.AuthorID]
		comments = append(comments, c)
	}
	return comments, nil
}
