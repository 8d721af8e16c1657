/*
Package mongo provides a MongoDB-backed implementation of attendance.Store.

PURPOSE:
  Production store. Attendance lives in the "attendance" collection and users
  in "users", in the same document shape older deployments already have:

    attendance: { userId, userEmail, date, status, notes, createdAt, updatedAt }
    users:      { _id, email, name, image, isAdminUser, leaveQuota,
                  defaultWorkFromHomeDays, onboardingCompleted }

  Two fields are added to attendance documents:

    day    "YYYY-MM-DD" of date in UTC, covered by a unique index
    leave  { category, paid, text } for leave records

INDEXES:
  - attendance_user_day: UNIQUE {userId, day}, partial on day existing.
    EnsureIndexes backfills day on legacy documents before creating it.
  - attendance_user_date: {userId, date} for range scans

TRANSACTIONS:
  Not a TxStore. Multi-day writes are applied one document at a time and a
  failure part way is reported by the caller as a partial write.

SEE ALSO:
  - attendance/store.go: Interface definitions
  - store/sqlite: Embedded implementation
*/
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/warp/attendance/attendance"
	"github.com/warp/attendance/calendar"
)

// Collection names.
const (
	AttendanceCollection = "attendance"
	UserCollection       = "users"

	// DefaultDatabase is the database used when none is configured.
	DefaultDatabase = "track-attendance"

	dayIndexName = "attendance_user_day"
)

// Store implements attendance.Store using MongoDB.
type Store struct {
	client     *mongo.Client
	attendance *mongo.Collection
	users      *mongo.Collection
}

// Connect opens a client, pings the primary and returns a store on dbName.
func Connect(ctx context.Context, uri, dbName string) (*Store, error) {
	if uri == "" {
		return nil, errors.New("mongo URI is required")
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return New(client, dbName), nil
}

// New wraps an existing client. An empty dbName selects DefaultDatabase.
func New(client *mongo.Client, dbName string) *Store {
	if dbName == "" {
		dbName = DefaultDatabase
	}
	db := client.Database(dbName)
	return &Store{
		client:     client,
		attendance: db.Collection(AttendanceCollection),
		users:      db.Collection(UserCollection),
	}
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Database is the name of the database the store reads and writes.
func (s *Store) Database() string {
	return s.attendance.Database().Name()
}

// Reset deletes every attendance record and user.
func (s *Store) Reset(ctx context.Context) error {
	for _, coll := range []*mongo.Collection{s.attendance, s.users} {
		if _, err := coll.DeleteMany(ctx, bson.M{}); err != nil {
			return fmt.Errorf("failed to reset %s: %w", coll.Name(), err)
		}
	}
	return nil
}

// Ping checks the connection to the primary.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// EnsureIndexes backfills the day key on legacy documents and creates the
// indexes. It is safe to run on every start. Index creation fails if legacy
// data already holds two records for the same user and day.
func (s *Store) EnsureIndexes(ctx context.Context) (int64, error) {
	res, err := s.attendance.UpdateMany(ctx,
		bson.M{"day": bson.M{"$exists": false}},
		mongo.Pipeline{
			{{Key: "$set", Value: bson.M{
				"day": bson.M{"$dateToString": bson.M{
					"format":   "%Y-%m-%d",
					"date":     "$date",
					"timezone": "UTC",
				}},
			}}},
		},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to backfill day keys: %w", err)
	}

	_, err = s.attendance.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "userId", Value: 1}, {Key: "day", Value: 1}},
			Options: options.Index().
				SetName(dayIndexName).
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"day": bson.M{"$exists": true}}),
		},
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "date", Value: 1}},
			Options: options.Index().SetName("attendance_user_date"),
		},
	})
	if err != nil {
		return res.ModifiedCount, fmt.Errorf("failed to create attendance indexes: %w", err)
	}
	return res.ModifiedCount, nil
}

// =============================================================================
// DOCUMENTS
// =============================================================================

type leaveDoc struct {
	Category string `bson:"category"`
	Paid     bool   `bson:"paid"`
	Text     string `bson:"text,omitempty"`
}

type attendanceDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	UserID    string             `bson:"userId"`
	UserEmail string             `bson:"userEmail"`
	Date      time.Time          `bson:"date"`
	Day       string             `bson:"day,omitempty"`
	Status    string             `bson:"status"`
	Notes     string             `bson:"notes,omitempty"`
	Leave     *leaveDoc          `bson:"leave,omitempty"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

// quotaDoc fields are pointers because older documents set only some of
// them; a missing field takes its default.
type quotaDoc struct {
	Planned       *int `bson:"planned,omitempty"`
	Unplanned     *int `bson:"unplanned,omitempty"`
	ParentalLeave *int `bson:"parentalLeave,omitempty"`
}

func toQuotaDoc(q attendance.LeaveQuota) *quotaDoc {
	return &quotaDoc{Planned: &q.Planned, Unplanned: &q.Unplanned, ParentalLeave: &q.Parental}
}

func (d quotaDoc) quota() attendance.LeaveQuota {
	q := attendance.DefaultLeaveQuota()
	if d.Planned != nil {
		q.Planned = *d.Planned
	}
	if d.Unplanned != nil {
		q.Unplanned = *d.Unplanned
	}
	if d.ParentalLeave != nil {
		q.Parental = *d.ParentalLeave
	}
	return q
}

type userDoc struct {
	ID                      primitive.ObjectID `bson:"_id,omitempty"`
	Email                   string             `bson:"email"`
	Name                    string             `bson:"name,omitempty"`
	Image                   string             `bson:"image,omitempty"`
	IsAdminUser             bool               `bson:"isAdminUser"`
	LeaveQuota              *quotaDoc          `bson:"leaveQuota,omitempty"`
	DefaultWorkFromHomeDays []string           `bson:"defaultWorkFromHomeDays"`
	OnboardingCompleted     bool               `bson:"onboardingCompleted"`
}

func toLeaveDoc(a *attendance.Annotation) *leaveDoc {
	if a == nil {
		return nil
	}
	return &leaveDoc{Category: string(a.Category), Paid: a.Paid, Text: a.Text}
}

func toAttendanceDoc(r attendance.Record) attendanceDoc {
	return attendanceDoc{
		UserID:    r.UserID,
		UserEmail: r.UserEmail,
		Date:      r.Date.UTC(),
		Day:       calendar.DayOf(r.Date).String(),
		Status:    string(r.Status),
		Notes:     r.Notes,
		Leave:     toLeaveDoc(r.Leave),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func (d attendanceDoc) record() attendance.Record {
	r := attendance.Record{
		ID:        d.ID.Hex(),
		UserID:    d.UserID,
		UserEmail: d.UserEmail,
		Date:      d.Date.UTC(),
		Status:    attendance.Status(d.Status),
		Notes:     d.Notes,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	// An unknown stored category is dropped so the notes are decoded instead.
	if d.Leave != nil && attendance.Category(d.Leave.Category).Valid() {
		r.Leave = &attendance.Annotation{
			Category: attendance.Category(d.Leave.Category),
			Paid:     d.Leave.Paid,
			Text:     d.Leave.Text,
		}
	}
	return r
}

func toUserDoc(u attendance.User) (userDoc, error) {
	doc := userDoc{
		Email:                   u.Email,
		Name:                    u.Name,
		Image:                   u.Image,
		IsAdminUser:             u.IsAdmin,
		DefaultWorkFromHomeDays: nonNil(u.Settings.DefaultWorkFromHomeDays),
		OnboardingCompleted:     u.Settings.OnboardingCompleted,
	}
	if q := u.Settings.LeaveQuota; q != nil {
		doc.LeaveQuota = toQuotaDoc(*q)
	}
	if u.ID == "" {
		doc.ID = primitive.NewObjectID()
		return doc, nil
	}
	id, err := primitive.ObjectIDFromHex(u.ID)
	if err != nil {
		return doc, &attendance.ValidationError{Field: "id", Message: "not a valid ObjectID"}
	}
	doc.ID = id
	return doc, nil
}

func (d userDoc) user() attendance.User {
	u := attendance.User{
		ID:      d.ID.Hex(),
		Email:   d.Email,
		Name:    d.Name,
		Image:   d.Image,
		IsAdmin: d.IsAdminUser,
		Settings: attendance.Settings{
			DefaultWorkFromHomeDays: d.DefaultWorkFromHomeDays,
			OnboardingCompleted:     d.OnboardingCompleted,
		},
	}
	if d.LeaveQuota != nil {
		q := d.LeaveQuota.quota()
		u.Settings.LeaveQuota = &q
	}
	return u
}

// buildFilter translates a Filter into a query document.
func buildFilter(f attendance.Filter) bson.M {
	filter := bson.M{}
	if f.UserID != "" {
		filter["userId"] = f.UserID
	}
	if f.Span != nil {
		filter["date"] = bson.M{"$gte": f.Span.Start.UTC(), "$lte": f.Span.End.UTC()}
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			statuses[i] = string(st)
		}
		filter["status"] = bson.M{"$in": statuses}
	}
	return filter
}

// buildUpdate translates a RecordUpdate into an update document.
func buildUpdate(u attendance.RecordUpdate, now time.Time) bson.M {
	set := bson.M{"updatedAt": now}
	if u.Date != nil {
		set["date"] = u.Date.UTC()
		set["day"] = calendar.DayOf(*u.Date).String()
	}
	if u.Status != nil {
		set["status"] = string(*u.Status)
	}
	if u.Notes != nil {
		set["notes"] = *u.Notes
	}
	if u.Leave != nil {
		set["leave"] = toLeaveDoc(u.Leave)
	}
	update := bson.M{"$set": set}
	if u.ClearLeave && u.Leave == nil {
		update["$unset"] = bson.M{"leave": ""}
	}
	return update
}

var sortByDate = bson.D{{Key: "date", Value: 1}, {Key: "userId", Value: 1}}

// =============================================================================
// RECORDS (attendance.RecordStore interface)
// =============================================================================

func (s *Store) Find(ctx context.Context, f attendance.Filter) ([]attendance.Record, error) {
	cursor, err := s.attendance.Find(ctx, buildFilter(f), options.Find().SetSort(sortByDate))
	if err != nil {
		return nil, fmt.Errorf("failed to query attendance: %w", err)
	}
	var docs []attendanceDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode attendance: %w", err)
	}
	records := make([]attendance.Record, len(docs))
	for i, d := range docs {
		records[i] = d.record()
	}
	return records, nil
}

func (s *Store) FindOne(ctx context.Context, f attendance.Filter) (*attendance.Record, error) {
	var doc attendanceDoc
	err := s.attendance.FindOne(ctx, buildFilter(f), options.FindOne().SetSort(sortByDate)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find attendance: %w", err)
	}
	r := doc.record()
	return &r, nil
}

func (s *Store) Insert(ctx context.Context, r attendance.Record) (*attendance.Record, error) {
	now := time.Now().UTC()
	r.CreatedAt, r.UpdatedAt = now, now

	// Legacy documents without a day key are not covered by the index.
	taken, err := s.FindOne(ctx, attendance.ForUser(r.UserID).On(calendar.DayOf(r.Date)))
	if err != nil {
		return nil, err
	}
	if taken != nil {
		return nil, attendance.ErrDuplicateDay
	}

	res, err := s.attendance.InsertOne(ctx, toAttendanceDoc(r))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, attendance.ErrDuplicateDay
		}
		return nil, fmt.Errorf("failed to insert attendance: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		r.ID = oid.Hex()
	}
	r.Date = r.Date.UTC()
	return &r, nil
}

// InsertIfAbsent upserts against the whole-day span so that a record stored
// at any hour of the day prevents the write.
func (s *Store) InsertIfAbsent(ctx context.Context, r attendance.Record) (bool, error) {
	now := time.Now().UTC()
	r.CreatedAt, r.UpdatedAt = now, now
	doc := toAttendanceDoc(r)

	filter := buildFilter(attendance.ForUser(r.UserID).On(calendar.DayOf(r.Date)))
	update := bson.M{"$setOnInsert": bson.M{
		"userEmail": doc.UserEmail,
		"date":      doc.Date,
		"day":       doc.Day,
		"status":    doc.Status,
		"notes":     doc.Notes,
		"createdAt": doc.CreatedAt,
		"updatedAt": doc.UpdatedAt,
	}}
	if doc.Leave != nil {
		update["$setOnInsert"].(bson.M)["leave"] = doc.Leave
	}

	res, err := s.attendance.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to upsert attendance: %w", err)
	}
	return res.UpsertedCount == 1, nil
}

func (s *Store) Update(ctx context.Context, id string, u attendance.RecordUpdate) (*attendance.Record, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, &attendance.NotFoundError{Resource: "record", Key: id}
	}

	if u.Date != nil {
		current, err := s.getRecord(ctx, oid)
		if err != nil {
			return nil, err
		}
		other, err := s.FindOne(ctx, attendance.ForUser(current.UserID).On(calendar.DayOf(*u.Date)))
		if err != nil {
			return nil, err
		}
		if other != nil && other.ID != id {
			return nil, attendance.ErrDuplicateDay
		}
	}

	var doc attendanceDoc
	err = s.attendance.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		buildUpdate(u, time.Now().UTC()),
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return nil, &attendance.NotFoundError{Resource: "record", Key: id}
	case mongo.IsDuplicateKeyError(err):
		return nil, attendance.ErrDuplicateDay
	case err != nil:
		return nil, fmt.Errorf("failed to update attendance: %w", err)
	}
	r := doc.record()
	return &r, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return &attendance.NotFoundError{Resource: "record", Key: id}
	}
	res, err := s.attendance.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("failed to delete attendance: %w", err)
	}
	if res.DeletedCount == 0 {
		return &attendance.NotFoundError{Resource: "record", Key: id}
	}
	return nil
}

func (s *Store) getRecord(ctx context.Context, oid primitive.ObjectID) (*attendance.Record, error) {
	var doc attendanceDoc
	err := s.attendance.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, &attendance.NotFoundError{Resource: "record", Key: oid.Hex()}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load attendance: %w", err)
	}
	r := doc.record()
	return &r, nil
}

// =============================================================================
// USERS (attendance.UserStore interface)
// =============================================================================

var caseInsensitive = &options.Collation{Locale: "en", Strength: 2}

func (s *Store) GetUser(ctx context.Context, id string) (*attendance.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, &attendance.NotFoundError{Resource: "user", Key: id}
	}
	return s.findUser(ctx, bson.M{"_id": oid}, id, options.FindOne())
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*attendance.User, error) {
	return s.findUser(ctx, bson.M{"email": email}, email, options.FindOne().SetCollation(caseInsensitive))
}

func (s *Store) findUser(ctx context.Context, filter bson.M, key string, opts *options.FindOneOptions) (*attendance.User, error) {
	var doc userDoc
	err := s.users.FindOne(ctx, filter, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, &attendance.NotFoundError{Resource: "user", Key: key}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user %s: %w", key, err)
	}
	u := doc.user()
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]attendance.User, error) {
	cursor, err := s.users.Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	var docs []userDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}
	users := make([]attendance.User, len(docs))
	for i, d := range docs {
		users[i] = d.user()
	}
	return users, nil
}

func (s *Store) SaveUser(ctx context.Context, u attendance.User) (*attendance.User, error) {
	doc, err := toUserDoc(u)
	if err != nil {
		return nil, err
	}
	_, err = s.users.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return nil, fmt.Errorf("failed to save user: %w", err)
	}
	saved := doc.user()
	return &saved, nil
}

func (s *Store) UpdateSettings(ctx context.Context, id string, settings attendance.Settings) (*attendance.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, &attendance.NotFoundError{Resource: "user", Key: id}
	}
	res, err := s.users.UpdateOne(ctx, bson.M{"_id": oid}, settingsUpdate(settings))
	if err != nil {
		return nil, fmt.Errorf("failed to update settings: %w", err)
	}
	if res.MatchedCount == 0 {
		return nil, &attendance.NotFoundError{Resource: "user", Key: id}
	}
	return s.GetUser(ctx, id)
}

func settingsUpdate(st attendance.Settings) bson.M {
	set := bson.M{
		"defaultWorkFromHomeDays": nonNil(st.DefaultWorkFromHomeDays),
		"onboardingCompleted":     st.OnboardingCompleted,
	}
	update := bson.M{"$set": set}
	if q := st.LeaveQuota; q != nil {
		set["leaveQuota"] = toQuotaDoc(*q)
	} else {
		update["$unset"] = bson.M{"leaveQuota": ""}
	}
	return update
}

func nonNil(days []string) []string {
	if days == nil {
		return []string{}
	}
	return days
}
