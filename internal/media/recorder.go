package media

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

// Record is the metadata document kept for each upload.
type Record struct {
	ID           string    `bson:"_id"`
	OwnerID      string    `bson:"owner_id"`
	ChatID       string    `bson:"chat_id"`
	Key          string    `bson:"key"`
	URL          string    `bson:"url"`
	ThumbnailURL string    `bson:"thumbnail_url,omitempty"`
	Type         string    `bson:"type"`
	ContentType  string    `bson:"content_type"`
	Size         int64     `bson:"size"`
	CreatedAt    time.Time `bson:"created_at"`
}

type Recorder interface {
	Record(ctx context.Context, rec Record) error
}

// MongoRecorder stores records in a mongo collection.
type MongoRecorder struct {
	col *mongo.Collection
}

func NewMongoRecorder(col *mongo.Collection) *MongoRecorder {
	return &MongoRecorder{col: col}
}

func (r *MongoRecorder) Record(ctx context.Context, rec Record) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := r.col.InsertOne(ctx, rec)
	return err
}

type NopRecorder struct{}

func (NopRecorder) Record(context.Context, Record) error { return nil }
