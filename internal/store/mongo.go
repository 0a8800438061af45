package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/IoTeC-ecosystems/backend-app/internal/telemetry"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore reads samples kept as flat documents, one per reading.
type MongoStore struct {
	coll *mongo.Collection
}

func NewMongoStore(coll *mongo.Collection) *MongoStore {
	return &MongoStore{coll: coll}
}

func (s *MongoStore) UnitIDs(ctx context.Context) ([]string, error) {
	values, err := s.coll.Distinct(ctx, KeyUnitID, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("distinct %s: %w", KeyUnitID, err)
	}

	ids := make([]string, 0, len(values))
	for _, v := range values {
		if id, ok := v.(string); ok && id != "" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MongoStore) Samples(ctx context.Context, unitIDs []string, w telemetry.Window) ([]telemetry.Sample, error) {
	cursor, err := s.coll.Find(ctx, mongoFilter(unitIDs, w), options.Find())
	if err != nil {
		return nil, fmt.Errorf("find samples: %w", err)
	}

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode samples: %w", err)
	}

	samples := make([]telemetry.Sample, 0, len(docs))
	for _, doc := range docs {
		samples = append(samples, sampleFromBSON(doc))
	}
	return samples, nil
}

func (s *MongoStore) InsertSamples(ctx context.Context, samples []telemetry.Sample) error {
	if len(samples) == 0 {
		return nil
	}

	docs := make([]interface{}, len(samples))
	for i, sample := range samples {
		docs[i] = bson.M(DocumentFromSample(sample))
	}

	if _, err := s.coll.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("insert %d samples: %w", len(samples), err)
	}
	return nil
}

func mongoFilter(unitIDs []string, w telemetry.Window) bson.M {
	filter := bson.M{KeyUnitID: bson.M{"$in": unitIDs}}

	bounds := bson.M{}
	if !w.Start.IsZero() {
		bounds["$gte"] = w.Start
	}
	if !w.End.IsZero() {
		bounds["$lte"] = w.End
	}
	if len(bounds) > 0 {
		filter[KeyTimestamp] = bounds
	}
	return filter
}

func sampleFromBSON(doc bson.M) telemetry.Sample {
	flat := make(map[string]any, len(doc))
	for k, v := range doc {
		if dt, ok := v.(primitive.DateTime); ok {
			flat[k] = dt.Time().UTC()
			continue
		}
		flat[k] = v
	}

	return SampleFromDocument(flat)
}
