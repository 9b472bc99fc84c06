// Package mongo stores student records in a MongoDB collection and
// enrollment images in GridFS.
package mongo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
	"github.com/saturnino-fabrica-de-software/chamada/internal/repository"
)

const (
	studentsCollection = "students"
	imagesBucket       = "images"
	fingerprintIndex   = "students_fingerprint_key"
)

// Connect opens a pooled client and verifies it with a ping.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	clientOpts := options.Client().ApplyURI(uri)
	clientOpts.SetMinPoolSize(5)
	clientOpts.SetMaxPoolSize(10)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// Store implements repository.Gateway on one database.
type Store struct {
	db       *mongo.Database
	students *mongo.Collection
}

var _ repository.Gateway = (*Store)(nil)

func New(db *mongo.Database) *Store {
	return &Store{
		db:       db,
		students: db.Collection(studentsCollection),
	}
}

// EnsureIndexes creates the unique fingerprint index the dedup relies on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.students.Indexes().CreateMany(ctx, []mongo.IndexModel{{
		Keys:    bson.D{{Key: "fingerprint", Value: 1}},
		Options: options.Index().SetUnique(true).SetName(fingerprintIndex),
	}, {
		Keys:    bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}},
		Options: options.Index(),
	}})
	if err != nil {
		return fmt.Errorf("create student indexes: %w", err)
	}
	return nil
}

type studentDocument struct {
	ID             string         `bson:"_id"`
	Name           string         `bson:"name"`
	Email          string         `bson:"email"`
	Role           string         `bson:"role"`
	Classes        map[string]int `bson:"classes"`
	CredentialHash string         `bson:"credential_hash"`
	Embedding      []float64      `bson:"embedding"`
	ImageKey       string         `bson:"image_key"`
	Fingerprint    string         `bson:"fingerprint"`
	CreatedAt      time.Time      `bson:"created_at"`
}

func toDocument(r *domain.StudentRecord) studentDocument {
	classes := r.Classes
	if classes == nil {
		classes = map[string]int{}
	}
	return studentDocument{
		ID:             r.ID,
		Name:           r.Name,
		Email:          r.Email,
		Role:           r.Role,
		Classes:        classes,
		CredentialHash: r.CredentialHash,
		Embedding:      r.Embedding,
		ImageKey:       r.ImageKey,
		Fingerprint:    r.Fingerprint,
		CreatedAt:      r.CreatedAt,
	}
}

func (d studentDocument) record() *domain.StudentRecord {
	classes := d.Classes
	if classes == nil {
		classes = map[string]int{}
	}
	return &domain.StudentRecord{
		ID:             d.ID,
		Name:           d.Name,
		Email:          d.Email,
		Role:           d.Role,
		Classes:        classes,
		CredentialHash: d.CredentialHash,
		Embedding:      domain.Embedding(d.Embedding),
		ImageKey:       d.ImageKey,
		Fingerprint:    d.Fingerprint,
		CreatedAt:      d.CreatedAt,
	}
}

func (s *Store) PutRecord(ctx context.Context, record *domain.StudentRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	// mongo keeps millisecond precision
	record.CreatedAt = record.CreatedAt.Truncate(time.Millisecond)

	_, err := s.students.InsertOne(ctx, toDocument(record))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			if strings.Contains(err.Error(), fingerprintIndex) {
				return domain.ErrDuplicateImage.WithError(err)
			}
			return domain.ErrIDAllocationConflict.WithError(err)
		}
		return classify(fmt.Errorf("insert student: %w", err))
	}
	return nil
}

func (s *Store) GetRecord(ctx context.Context, id string) (*domain.StudentRecord, error) {
	return s.findOne(ctx, bson.M{"_id": id}, "get student")
}

func (s *Store) FindByFingerprint(ctx context.Context, fingerprint string) (*domain.StudentRecord, error) {
	return s.findOne(ctx, bson.M{"fingerprint": fingerprint}, "find student by fingerprint")
}

func (s *Store) findOne(ctx context.Context, filter bson.M, op string) (*domain.StudentRecord, error) {
	var doc studentDocument
	err := s.students.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrStudentNotFound
	}
	if err != nil {
		return nil, classify(fmt.Errorf("%s: %w", op, err))
	}
	return doc.record(), nil
}

func (s *Store) ListRecords(ctx context.Context) ([]domain.StudentRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := s.students.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, classify(fmt.Errorf("list students: %w", err))
	}
	defer func() { _ = cursor.Close(ctx) }()

	records := make([]domain.StudentRecord, 0)
	for cursor.Next(ctx) {
		var doc studentDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode student: %w", err)
		}
		records = append(records, *doc.record())
	}
	if err := cursor.Err(); err != nil {
		return nil, classify(fmt.Errorf("iterate students: %w", err))
	}
	return records, nil
}

// IncrementAttendance uses $inc on classes.<classID>, atomic per document.
func (s *Store) IncrementAttendance(ctx context.Context, id, classID string) (int, error) {
	field, ok := classField(classID)
	if !ok {
		return 0, domain.ErrClassNotEnrolled
	}

	filter := bson.M{"_id": id, field: bson.M{"$exists": true}}
	update := bson.M{"$inc": bson.M{field: 1}}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"classes": 1})

	var doc studentDocument
	err := s.students.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if err == nil {
		return doc.Classes[classID], nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return 0, classify(fmt.Errorf("increment attendance: %w", err))
	}

	n, err := s.students.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, classify(fmt.Errorf("check student: %w", err))
	}
	if n == 0 {
		return 0, domain.ErrStudentNotFound
	}
	return 0, domain.ErrClassNotEnrolled
}

// classField builds the dotted path of a class counter. Ids that would
// escape the classes sub-document are refused.
func classField(classID string) (string, bool) {
	if classID == "" || strings.ContainsAny(classID, ".$") {
		return "", false
	}
	return "classes." + classID, true
}

// bucket opens the GridFS bucket with the context deadline applied. A new
// bucket per call keeps deadlines from leaking between requests.
func (s *Store) bucket(ctx context.Context) (*gridfs.Bucket, error) {
	b, err := gridfs.NewBucket(s.db, options.GridFSBucket().SetName(imagesBucket))
	if err != nil {
		return nil, fmt.Errorf("open gridfs bucket: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := b.SetWriteDeadline(deadline); err != nil {
			return nil, err
		}
		if err := b.SetReadDeadline(deadline); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// PutBlob stores data as a GridFS file whose id and filename are key.
func (s *Store) PutBlob(ctx context.Context, key string, data []byte) error {
	b, err := s.bucket(ctx)
	if err != nil {
		return err
	}

	err = b.UploadFromStreamWithID(key, key, bytes.NewReader(data))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrBlobExists
		}
		return classify(fmt.Errorf("upload blob: %w", err))
	}
	return nil
}

func (s *Store) GetBlob(ctx context.Context, key string) ([]byte, error) {
	b, err := s.bucket(ctx)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if _, err := b.DownloadToStream(key, &buf); err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, domain.ErrBlobNotFound
		}
		return nil, classify(fmt.Errorf("download blob: %w", err))
	}
	return buf.Bytes(), nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.Client().Ping(ctx, nil); err != nil {
		return classify(fmt.Errorf("ping mongo: %w", err))
	}
	return nil
}

func classify(err error) error {
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return repository.Transient(err)
	}
	return err
}
