package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
)

type ToFirestoreFunc[T any] func(*T) map[string]interface{}
type FromFirestoreFunc[T any] func(map[string]interface{}) *T

type Collection[T any] struct {
	Ref           *firestore.CollectionRef
	ToFirestore   ToFirestoreFunc[T]
	FromFirestore FromFirestoreFunc[T]
}

func (c *Collection[T]) Doc(id string) *DocumentRef[T] {
	return &DocumentRef[T]{
		Ref:           c.Ref.Doc(id),
		ToFirestore:   c.ToFirestore,
		FromFirestore: c.FromFirestore,
	}
}

// Query starts a query scoped to this collection's document type.
func (c *Collection[T]) Query() Query[T] {
	return Query[T]{q: c.Ref.Query, from: c.FromFirestore}
}

type DocumentRef[T any] struct {
	Ref           *firestore.DocumentRef
	ToFirestore   ToFirestoreFunc[T]
	FromFirestore FromFirestoreFunc[T]
}

func (d *DocumentRef[T]) ID() string {
	return d.Ref.ID
}

func (d *DocumentRef[T]) Get(ctx context.Context) (*T, error) {
	snap, err := d.Ref.Get(ctx)
	if err != nil {
		return nil, err
	}
	return d.FromFirestore(snap.Data()), nil
}

func (d *DocumentRef[T]) Set(ctx context.Context, data *T) error {
	m := d.ToFirestore(data)
	_, err := d.Ref.Set(ctx, m, firestore.MergeAll)
	return err
}

// Replace overwrites the document wholesale, dropping any fields not present
// in data. Used where stale fields must not survive a rewrite.
func (d *DocumentRef[T]) Replace(ctx context.Context, data *T) error {
	m := d.ToFirestore(data)
	_, err := d.Ref.Set(ctx, m)
	return err
}

func (d *DocumentRef[T]) Update(ctx context.Context, updates map[string]interface{}) error {
	// Keys must match Firestore snake_case fields; converters are bypassed
	// because updates are usually partials.
	_, err := d.Ref.Set(ctx, updates, firestore.MergeAll)
	return err
}

// Query wraps a firestore.Query and decodes documents through the collection
// converter.
type Query[T any] struct {
	q    firestore.Query
	from FromFirestoreFunc[T]
}

func (q Query[T]) Where(path, op string, value interface{}) Query[T] {
	return Query[T]{q: q.q.Where(path, op, value), from: q.from}
}

func (q Query[T]) OrderBy(path string, dir firestore.Direction) Query[T] {
	return Query[T]{q: q.q.OrderBy(path, dir), from: q.from}
}

func (q Query[T]) Limit(n int) Query[T] {
	return Query[T]{q: q.q.Limit(n), from: q.from}
}

func (q Query[T]) StartAfter(values ...interface{}) Query[T] {
	return Query[T]{q: q.q.StartAfter(values...), from: q.from}
}

func (q Query[T]) Documents(ctx context.Context) *firestore.DocumentIterator {
	return q.q.Documents(ctx)
}

func (q Query[T]) Decode(data map[string]interface{}) *T {
	return q.from(data)
}
