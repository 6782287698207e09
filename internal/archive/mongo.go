// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package archive

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore is a production Store backed by go.mongodb.org/mongo-driver.
type MongoStore struct {
	db *mongo.Database
}

// Dial connects to MongoDB at uri and selects database dbName.
func Dial(ctx context.Context, uri, dbName string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &MongoStore{db: client.Database(dbName)}, nil
}

func toBsonM(d Doc) bson.M {
	m := bson.M{}
	for k, v := range d {
		m[k] = v
	}
	return m
}

func fromBsonM(m bson.M) Doc {
	d := Doc{}
	for k, v := range m {
		d[k] = v
	}
	return d
}

func (s *MongoStore) Insert(ctx context.Context, collection string, docs []Doc) error {
	if len(docs) == 0 {
		return nil
	}
	vals := make([]interface{}, len(docs))
	for i, d := range docs {
		vals[i] = toBsonM(d)
	}
	_, err := s.db.Collection(collection).InsertMany(ctx, vals)
	return err
}

func (s *MongoStore) Find(ctx context.Context, collection string, q Query) ([]Doc, error) {
	opts := options.Find()
	if q.SortField != "" {
		dir := int(q.SortDir)
		if dir == 0 {
			dir = 1
		}
		opts.SetSort(bson.D{{Key: q.SortField, Value: dir}})
	}
	if q.Limit > 0 {
		opts.SetLimit(q.Limit)
	}
	filter := bson.M{}
	if q.Filter != nil {
		filter = toBsonM(q.Filter)
	}
	cur, err := s.db.Collection(collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var raw []bson.M
	if err := cur.All(ctx, &raw); err != nil {
		return nil, err
	}
	docs := make([]Doc, len(raw))
	for i, m := range raw {
		docs[i] = fromBsonM(m)
	}
	return docs, nil
}

func (s *MongoStore) FindOne(ctx context.Context, collection string, filter Doc) (Doc, bool, error) {
	var raw bson.M
	err := s.db.Collection(collection).FindOne(ctx, toBsonM(filter)).Decode(&raw)
	if err == mongo.ErrNoDocuments {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return fromBsonM(raw), true, nil
}

func (s *MongoStore) Remove(ctx context.Context, collection string, filter Doc) error {
	_, err := s.db.Collection(collection).DeleteMany(ctx, toBsonM(filter))
	return err
}

func (s *MongoStore) EnsureIndex(ctx context.Context, collection string, keys []IndexKey, ttl time.Duration) error {
	keyDoc := bson.D{}
	for _, k := range keys {
		keyDoc = append(keyDoc, bson.E{Key: k.Field, Value: int(k.Dir)})
	}
	idxOpts := options.Index()
	if ttl > 0 {
		secs := int32(ttl.Seconds())
		idxOpts.SetExpireAfterSeconds(secs)
	}
	_, err := s.db.Collection(collection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    keyDoc,
		Options: idxOpts,
	})
	return err
}

func (s *MongoStore) ReplaceAll(ctx context.Context, collection string, docs []Doc) error {
	coll := s.db.Collection(collection)
	if _, err := coll.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("clear %s: %w", collection, err)
	}
	if len(docs) == 0 {
		return nil
	}
	return s.Insert(ctx, collection, docs)
}

func (s *MongoStore) AggregateAvg(ctx context.Context, collection string, match Doc, groupBy []string, avgFields []string) ([]AggResult, error) {
	groupID := bson.M{}
	for _, g := range groupBy {
		groupID[g] = "$" + g
	}
	group := bson.M{"_id": groupID}
	for _, f := range avgFields {
		group[f] = bson.M{"$avg": "$" + f}
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: toBsonM(match)}},
		{{Key: "$group", Value: group}},
	}
	cur, err := s.db.Collection(collection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var raw []bson.M
	if err := cur.All(ctx, &raw); err != nil {
		return nil, err
	}
	results := make([]AggResult, 0, len(raw))
	for _, row := range raw {
		res := AggResult{GroupKey: map[string]string{}, Averages: map[string]float64{}}
		if idVal, ok := row["_id"].(bson.M); ok {
			for _, g := range groupBy {
				if v, ok := idVal[g].(string); ok {
					res.GroupKey[g] = v
				}
			}
		}
		for _, f := range avgFields {
			switch v := row[f].(type) {
			case float64:
				res.Averages[f] = v
			case int32:
				res.Averages[f] = float64(v)
			case int64:
				res.Averages[f] = float64(v)
			}
		}
		results = append(results, res)
	}
	return results, nil
}
