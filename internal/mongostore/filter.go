package mongostore

import (
	"go.mongodb.org/mongo-driver/bson"

	"hoard/internal/store"
)

var sortFields = map[store.SortField]string{
	store.SortByCreatedAt:      "created",
	store.SortByLastModifiedAt: "lastModified",
	store.SortByLength:         "length",
	store.SortByID:             "_id",
}

// filterDocument translates a store.Filter into a query document.
func filterDocument(f store.Filter) bson.D {
	doc := bson.D{}
	if len(f.IDs) > 0 {
		doc = append(doc, bson.E{Key: "_id", Value: bson.D{{Key: "$in", Value: f.IDs}}})
	}

	level := bson.D{}
	if len(f.Levels) > 0 {
		levels := make([]int, 0, len(f.Levels))
		for _, l := range f.Levels {
			levels = append(levels, int(l))
		}
		level = append(level, bson.E{Key: "$in", Value: levels})
	}
	if f.MinLevel != nil {
		level = append(level, bson.E{Key: "$gte", Value: int(*f.MinLevel)})
	}
	if len(level) > 0 {
		doc = append(doc, bson.E{Key: "level", Value: level})
	}

	if f.Bucket != "" {
		doc = append(doc, bson.E{Key: "bucket", Value: f.Bucket})
	}
	if len(f.Dirs) > 0 {
		doc = append(doc, bson.E{Key: "dirs", Value: bson.D{{Key: "$in", Value: f.Dirs}}})
	}

	created := bson.D{}
	if !f.CreatedBefore.IsZero() {
		created = append(created, bson.E{Key: "$lt", Value: f.CreatedBefore.UTC()})
	}
	if !f.CreatedSince.IsZero() {
		created = append(created, bson.E{Key: "$gte", Value: f.CreatedSince.UTC()})
	}
	if len(created) > 0 {
		doc = append(doc, bson.E{Key: "created", Value: created})
	}

	if !f.ModifiedBefore.IsZero() {
		doc = append(doc, bson.E{Key: "lastModified", Value: bson.D{{Key: "$lt", Value: f.ModifiedBefore.UTC()}}})
	}
	if f.MaxLength != nil {
		doc = append(doc, bson.E{Key: "length", Value: bson.D{{Key: "$lte", Value: *f.MaxLength}}})
	}
	return doc
}

func patchDocument(p store.Patch) bson.D {
	set := bson.D{}
	if p.Level != nil {
		set = append(set, bson.E{Key: "level", Value: int(*p.Level)})
	}
	if p.Bucket != nil {
		set = append(set, bson.E{Key: "bucket", Value: *p.Bucket})
	}
	if !p.LastModifiedAt.IsZero() {
		set = append(set, bson.E{Key: "lastModified", Value: p.LastModifiedAt.UTC()})
	}
	if p.LastViewedAt != nil {
		set = append(set, bson.E{Key: "lastViewed", Value: p.LastViewedAt.UTC()})
	}
	return set
}

func sortDocument(s store.Sort) bson.D {
	field, ok := sortFields[s.Field]
	if !ok {
		field = sortFields[store.SortByCreatedAt]
	}
	dir := 1
	if s.Desc {
		dir = -1
	}
	doc := bson.D{{Key: field, Value: dir}}
	if field != "_id" {
		doc = append(doc, bson.E{Key: "_id", Value: 1})
	}
	return doc
}
