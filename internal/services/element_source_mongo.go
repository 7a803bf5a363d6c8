package services

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"bimsense/internal/database"
	"bimsense/internal/models"
)

// MongoElementSource reads the BIM element corpus from MongoDB. Pattern
// pages are computed with an aggregation pipeline so grouping, counting,
// bounded sampling, and dimension statistics all happen server-side; the
// semantics match BuildPatterns exactly.
type MongoElementSource struct {
	collection *mongo.Collection
}

// NewMongoElementSource creates an element source over the elements
// collection.
func NewMongoElementSource(mongoDB *database.MongoDB) *MongoElementSource {
	return &MongoElementSource{
		collection: mongoDB.Collection(database.CollectionElements),
	}
}

// ByIDs returns the snapshots matching ids.
func (s *MongoElementSource) ByIDs(ctx context.Context, ids []string) ([]models.ElementSnapshot, error) {
	cursor, err := s.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("failed to query elements: %w", err)
	}
	defer cursor.Close(ctx)

	var snapshots []models.ElementSnapshot
	if err := cursor.All(ctx, &snapshots); err != nil {
		return nil, fmt.Errorf("failed to decode elements: %w", err)
	}
	return snapshots, nil
}

// normalizedTupleExpr lower-cases the five categorical fields, substituting
// the empty string for absent ones so "missing" and "explicitly empty" land
// in the same group — the same normalization models.NewPatternKey applies.
func normalizedTupleExpr() bson.M {
	field := func(name string) bson.M {
		return bson.M{"$toLower": bson.M{"$ifNull": bson.A{"$" + name, ""}}}
	}
	return bson.M{
		"category":     field("category"),
		"family":       field("family"),
		"type":         field("type"),
		"material":     field("material"),
		"locationType": field("locationType"),
	}
}

// patternGroupDoc is the decoded shape of one $group result.
type patternGroupDoc struct {
	Key     models.PatternKey        `bson:"_id"`
	Count   int                      `bson:"count"`
	Samples []models.ElementSnapshot `bson:"samples"`

	LengthMin *float64 `bson:"lengthMin"`
	LengthMax *float64 `bson:"lengthMax"`
	LengthAvg *float64 `bson:"lengthAvg"`

	WidthMin *float64 `bson:"widthMin"`
	WidthMax *float64 `bson:"widthMax"`
	WidthAvg *float64 `bson:"widthAvg"`

	HeightMin *float64 `bson:"heightMin"`
	HeightMax *float64 `bson:"heightMax"`
	HeightAvg *float64 `bson:"heightAvg"`

	DiameterMin *float64 `bson:"diameterMin"`
	DiameterMax *float64 `bson:"diameterMax"`
	DiameterAvg *float64 `bson:"diameterAvg"`
}

// PatternPage returns one tuple-ordered page of patterns over the corpus.
func (s *MongoElementSource) PatternPage(ctx context.Context, skip, take, sampleSize int) ([]models.Pattern, error) {
	group := bson.M{
		"_id":   normalizedTupleExpr(),
		"count": bson.M{"$sum": 1},
		// Documents enter the group in _id order (the $sort stage), so
		// $firstN yields the same deterministic first-N sample as the
		// in-memory aggregation.
		"samples": bson.M{"$firstN": bson.M{"input": "$$ROOT", "n": sampleSize}},
	}
	// $min/$max/$avg skip missing and null values, which keeps each
	// dimension independently optional.
	for _, dim := range []string{"length", "width", "height", "diameter"} {
		group[dim+"Min"] = bson.M{"$min": "$" + dim}
		group[dim+"Max"] = bson.M{"$max": "$" + dim}
		group[dim+"Avg"] = bson.M{"$avg": "$" + dim}
	}

	pipeline := mongo.Pipeline{
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
		{{Key: "$group", Value: group}},
		{{Key: "$sort", Value: bson.D{
			{Key: "_id.category", Value: 1},
			{Key: "_id.family", Value: 1},
			{Key: "_id.type", Value: 1},
			{Key: "_id.material", Value: 1},
			{Key: "_id.locationType", Value: 1},
		}}},
		{{Key: "$skip", Value: skip}},
		{{Key: "$limit", Value: take}},
	}

	cursor, err := s.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate patterns: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []patternGroupDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode pattern groups: %w", err)
	}

	patterns := make([]models.Pattern, 0, len(docs))
	for _, doc := range docs {
		patterns = append(patterns, models.Pattern{
			Key:            doc.Key,
			Hash:           doc.Key.Hash(),
			ElementCount:   doc.Count,
			SampleElements: doc.Samples,
			Dimensions: models.PatternDimensions{
				Length:   assembleStats(doc.LengthMin, doc.LengthMax, doc.LengthAvg),
				Width:    assembleStats(doc.WidthMin, doc.WidthMax, doc.WidthAvg),
				Height:   assembleStats(doc.HeightMin, doc.HeightMax, doc.HeightAvg),
				Diameter: assembleStats(doc.DiameterMin, doc.DiameterMax, doc.DiameterAvg),
			},
		})
	}
	return patterns, nil
}

// PatternCount counts distinct normalized tuples server-side.
func (s *MongoElementSource) PatternCount(ctx context.Context) (int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": normalizedTupleExpr()}}},
		{{Key: "$count", Value: "count"}},
	}

	cursor, err := s.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("failed to count patterns: %w", err)
	}
	defer cursor.Close(ctx)

	var result []struct {
		Count int64 `bson:"count"`
	}
	if err := cursor.All(ctx, &result); err != nil {
		return 0, fmt.Errorf("failed to decode pattern count: %w", err)
	}
	if len(result) == 0 {
		return 0, nil
	}
	return result[0].Count, nil
}

func assembleStats(min, max, avg *float64) *models.DimensionStats {
	if min == nil || max == nil || avg == nil {
		return nil
	}
	return &models.DimensionStats{Min: *min, Max: *max, Avg: *avg}
}
