package store

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
)

// MongoCollection implements Collection on top of a MongoDB change stream.
// Change streams need a replica set (a single-node one is enough).
type MongoCollection struct {
	coll *mongo.Collection
	log  *zap.Logger
}

func (c *MongoCollection) Name() string {
	return c.coll.Name()
}

// Create upserts under a fresh ObjectID so that $currentDate can stamp the
// document in the same write.
func (c *MongoCollection) Create(ctx context.Context, doc any, stamp ...string) (bson.ObjectID, error) {
	id := bson.NewObjectID()
	update := bson.M{"$setOnInsert": doc}
	if cd := currentDate(stamp); cd != nil {
		update["$currentDate"] = cd
	}
	if _, err := c.coll.UpdateOne(ctx, bson.M{"_id": id}, update, options.UpdateOne().SetUpsert(true)); err != nil {
		return bson.NilObjectID, fmt.Errorf("create %s: %w", c.Name(), err)
	}
	return id, nil
}

func (c *MongoCollection) Update(ctx context.Context, id bson.ObjectID, set bson.M, stamp ...string) error {
	res, err := c.coll.UpdateOne(ctx, bson.M{"_id": id}, updateDoc(set, stamp))
	if err != nil {
		return fmt.Errorf("update %s: %w", c.Name(), err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Subscribe opens the change stream before reading the first snapshot so no
// write between the two is missed.
func (c *MongoCollection) Subscribe(ctx context.Context) (*Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	stream, err := c.coll.Watch(ctx, mongo.Pipeline{})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("watch %s: %w", c.Name(), err)
	}

	snap, err := c.snapshot(ctx)
	if err != nil {
		stream.Close(context.Background())
		cancel()
		return nil, err
	}

	sub := newSubscription(cancel)
	sub.publish(snap)
	go c.follow(ctx, stream, sub)
	return sub, nil
}

func (c *MongoCollection) follow(ctx context.Context, stream *mongo.ChangeStream, sub *Subscription) {
	defer stream.Close(context.Background())

	for stream.Next(ctx) {
		// One reload covers every change already buffered in this batch.
		for stream.TryNext(ctx) {
		}
		snap, err := c.snapshot(ctx)
		if err != nil {
			if ctx.Err() != nil {
				sub.stop(ErrClosed)
				return
			}
			c.log.Error("reload snapshot", zap.Error(err))
			sub.stop(err)
			return
		}
		sub.publish(snap)
	}

	if ctx.Err() != nil {
		sub.stop(ErrClosed)
		return
	}
	err := stream.Err()
	if err == nil {
		err = errors.New("change stream ended")
	}
	c.log.Error("change stream stopped", zap.Error(err))
	sub.stop(fmt.Errorf("watch %s: %w", c.Name(), err))
}

func (c *MongoCollection) snapshot(ctx context.Context) (Snapshot, error) {
	cursor, err := c.coll.Find(ctx, bson.D{})
	if err != nil {
		return Snapshot{}, fmt.Errorf("find %s: %w", c.Name(), err)
	}
	defer cursor.Close(context.Background())

	var docs []bson.Raw
	for cursor.Next(ctx) {
		docs = append(docs, slices.Clone(cursor.Current))
	}
	if err := cursor.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("read %s: %w", c.Name(), err)
	}
	return Snapshot{Docs: docs}, nil
}

func currentDate(stamp []string) bson.M {
	if len(stamp) == 0 {
		return nil
	}
	cd := bson.M{}
	for _, f := range stamp {
		cd[f] = true
	}
	return cd
}

func updateDoc(set bson.M, stamp []string) bson.M {
	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = set
	}
	if cd := currentDate(stamp); cd != nil {
		update["$currentDate"] = cd
	}
	return update
}
