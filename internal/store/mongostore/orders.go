package mongostore

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/storefront/internal/orders"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

var _ orders.Repository = (*Store)(nil)

type itemDoc struct {
	ProductID string          `bson:"productId"`
	Name      string          `bson:"name"`
	Quantity  int             `bson:"quantity"`
	UnitPrice bson.Decimal128 `bson:"unitPrice"`
}

type orderDoc struct {
	ID         string          `bson:"_id"`
	UserID     string          `bson:"userId"`
	Items      []itemDoc       `bson:"items"`
	TotalPrice bson.Decimal128 `bson:"totalPrice"`
	Status     string          `bson:"status"`
	CreatedAt  time.Time       `bson:"createdAt"`
	UpdatedAt  time.Time       `bson:"updatedAt"`
}

func toOrderDoc(o *orders.Order) (*orderDoc, error) {
	total, err := toDecimal128(o.TotalPrice)
	if err != nil {
		return nil, err
	}
	items := make([]itemDoc, len(o.Items))
	for i, it := range o.Items {
		price, err := toDecimal128(it.UnitPrice)
		if err != nil {
			return nil, err
		}
		items[i] = itemDoc{ProductID: it.ProductID, Name: it.Name, Quantity: it.Quantity, UnitPrice: price}
	}
	return &orderDoc{
		ID:         o.ID,
		UserID:     o.UserID,
		Items:      items,
		TotalPrice: total,
		Status:     string(o.Status),
		CreatedAt:  o.CreatedAt,
		UpdatedAt:  o.UpdatedAt,
	}, nil
}

func (d *orderDoc) toOrder() (*orders.Order, error) {
	total, err := fromDecimal128(d.TotalPrice)
	if err != nil {
		return nil, err
	}
	items := make([]orders.Item, len(d.Items))
	for i, it := range d.Items {
		price, err := fromDecimal128(it.UnitPrice)
		if err != nil {
			return nil, err
		}
		items[i] = orders.Item{ProductID: it.ProductID, Name: it.Name, Quantity: it.Quantity, UnitPrice: price}
	}
	return &orders.Order{
		ID:         d.ID,
		UserID:     d.UserID,
		Items:      items,
		TotalPrice: total,
		Status:     orders.Status(d.Status),
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}, nil
}

func (s *Store) InsertOrder(ctx context.Context, o *orders.Order) error {
	doc, err := toOrderDoc(o)
	if err != nil {
		return err
	}
	_, err = s.orders.InsertOne(ctx, doc)
	return err
}

func (s *Store) GetOrder(ctx context.Context, id string) (*orders.Order, error) {
	var doc orderDoc
	err := s.orders.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, orders.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.toOrder()
}

func (s *Store) ListOrdersByUser(ctx context.Context, userID string) ([]orders.Order, error) {
	return s.findOrders(ctx, bson.M{"userId": userID})
}

func (s *Store) ListOrders(ctx context.Context) ([]orders.Order, error) {
	return s.findOrders(ctx, bson.M{})
}

func (s *Store) findOrders(ctx context.Context, filter bson.M) ([]orders.Order, error) {
	cur, err := s.orders.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []orderDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	out := make([]orders.Order, 0, len(docs))
	for i := range docs {
		o, err := docs[i].toOrder()
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, nil
}

func (s *Store) UpdateOrderStatus(ctx context.Context, id string, status orders.Status, updatedAt time.Time) error {
	res, err := s.orders.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"status":    string(status),
		"updatedAt": updatedAt,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return orders.ErrNotFound
	}
	return nil
}
