package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/bosocmputer/khata_ocr/internal/khata"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	studentsCollection = "students"
	marksCollection    = "marks"

	queryTimeout = 5 * time.Second
)

// ErrDuplicateRoll is returned when a class already has a student with the roll
var ErrDuplicateRoll = errors.New("roll number already exists in class")

// MongoStore owns the MongoDB connection
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// ConnectMongo connects, pings and makes sure the indexes exist
func ConnectMongo(ctx context.Context, uri, dbName string) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	store := &MongoStore{client: client, db: client.Database(dbName)}
	if err := store.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	log.Println("✅ Connected to MongoDB successfully!")
	return store, nil
}

// ensureIndexes enforces one mark per (student, class, subject, term, year)
// and one student per (class, roll key)
func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.db.Collection(marksCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "student_id", Value: 1},
			{Key: "class_id", Value: 1},
			{Key: "subject_id", Value: 1},
			{Key: "term", Value: 1},
			{Key: "year", Value: 1},
		},
		Options: options.Index().SetUnique(true).SetName("mark_key"),
	})
	if err != nil {
		return fmt.Errorf("failed to create marks index: %w", err)
	}

	// roll_key folds "7", "07" and "০৭" together; documents written before
	// the field existed are left out of the constraint
	_, err = s.db.Collection(studentsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "class_id", Value: 1}, {Key: "roll_key", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("class_roll_key").
			SetPartialFilterExpression(bson.M{"roll_key": bson.M{"$exists": true}}),
	})
	if err != nil {
		return fmt.Errorf("failed to create students index: %w", err)
	}
	return nil
}

// Close disconnects from MongoDB
func (s *MongoStore) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s.client.Disconnect(ctx); err != nil {
		return err
	}
	log.Println("MongoDB connection closed")
	return nil
}

// Roster returns the students repository
func (s *MongoStore) Roster() *MongoRosterRepository {
	return &MongoRosterRepository{coll: s.db.Collection(studentsCollection)}
}

// Marks returns the marks repository
func (s *MongoStore) Marks() *MongoMarkRepository {
	return &MongoMarkRepository{coll: s.db.Collection(marksCollection)}
}

// MongoRosterRepository implements khata.RosterRepository
type MongoRosterRepository struct {
	coll *mongo.Collection
}

// Lookup lists a class roster ordered by roll
func (r *MongoRosterRepository) Lookup(ctx context.Context, classID string) ([]khata.Student, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "roll_number", Value: 1}})
	cursor, err := r.coll.Find(ctx, bson.M{"class_id": classID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query students: %w", err)
	}
	defer cursor.Close(ctx)

	students := []khata.Student{}
	if err := cursor.All(ctx, &students); err != nil {
		return nil, fmt.Errorf("failed to decode students: %w", err)
	}
	return students, nil
}

// Create inserts a student with a generated id
func (r *MongoRosterRepository) Create(ctx context.Context, classID string, ns khata.NewStudent) (*khata.Student, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	student := newStudent(classID, ns)
	if _, err := r.coll.InsertOne(ctx, newStudentDocument(student)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateRoll, student.RollNumber)
		}
		return nil, fmt.Errorf("failed to insert student: %w", err)
	}
	return &student, nil
}

// MongoMarkRepository implements khata.MarkRepository
type MongoMarkRepository struct {
	coll *mongo.Collection
}

// Query lists marks for one class/subject/term/year
func (r *MongoMarkRepository) Query(ctx context.Context, classID, subjectID string, term, year int) ([]khata.MarkRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	filter := bson.M{"class_id": classID, "subject_id": subjectID, "term": term, "year": year}
	cursor, err := r.coll.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query marks: %w", err)
	}
	defer cursor.Close(ctx)

	records := []khata.MarkRecord{}
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode marks: %w", err)
	}
	return records, nil
}

// Upsert inserts or overwrites the record at its key
func (r *MongoMarkRepository) Upsert(ctx context.Context, rec khata.MarkRecord) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.coll.UpdateOne(ctx, markFilter(rec), markUpdate(rec), options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert mark for student %s: %w", rec.StudentID, err)
	}
	return nil
}

func markFilter(rec khata.MarkRecord) bson.M {
	return bson.M{
		"student_id": rec.StudentID,
		"class_id":   rec.ClassID,
		"subject_id": rec.SubjectID,
		"term":       rec.Term,
		"year":       rec.Year,
	}
}

// markUpdate writes the total only; quiz and engagement get defaults on insert
// and are left alone on overwrite
func markUpdate(rec khata.MarkRecord) bson.M {
	updatedAt := rec.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	return bson.M{
		"$set": bson.M{
			"total_marks": rec.TotalMarks,
			"source":      rec.Source,
			"updated_at":  updatedAt,
		},
		"$setOnInsert": bson.M{
			"quiz_marks":       0.0,
			"engagement_score": 0.0,
			"created_at":       updatedAt,
		},
	}
}

func newStudent(classID string, ns khata.NewStudent) khata.Student {
	return khata.Student{
		ID:         uuid.New().String(),
		ClassID:    classID,
		TeacherID:  ns.TeacherID,
		Name:       strings.TrimSpace(ns.Name),
		RollNumber: strings.TrimSpace(ns.RollNumber),
		CreatedAt:  time.Now(),
	}
}

// studentDocument is the stored form of a student: the roll as written plus
// the key uniqueness is enforced on
type studentDocument struct {
	khata.Student `bson:",inline"`
	RollKey       string `bson:"roll_key"`
}

func newStudentDocument(s khata.Student) studentDocument {
	return studentDocument{Student: s, RollKey: khata.RollKey(s.RollNumber)}
}
