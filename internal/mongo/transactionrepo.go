package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ashendes/kitchen-pos/internal/models"
	"github.com/ashendes/kitchen-pos/internal/settlement"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	defaultURL        = "mongodb://localhost:27017"
	defaultDatabase   = "kitchen_pos"
	transactionsTable = "transactions"
)

// TransactionRepo is a settlement ledger backed by MongoDB
type TransactionRepo struct {
	url        string
	dbName     string
	client     *mongo.Client
	collection *mongo.Collection
	logger     log.FieldLogger
}

var _ settlement.Ledger = (*TransactionRepo)(nil)

func NewTransactionRepo(url, dbName string, logger log.FieldLogger) *TransactionRepo {
	if url == "" {
		url = defaultURL
	}
	if dbName == "" {
		dbName = defaultDatabase
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &TransactionRepo{
		url:    url,
		dbName: dbName,
		logger: logger,
	}
}

func (r *TransactionRepo) Start(ctx context.Context) error {
	clientOptions := options.Client().ApplyURI(r.url).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return fmt.Errorf("cannot connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return fmt.Errorf("cannot ping MongoDB: %w", err)
	}

	r.client = client
	r.collection = client.Database(r.dbName).Collection(transactionsTable)

	orderIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "order_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := r.collection.Indexes().CreateOne(ctx, orderIndex); err != nil {
		return fmt.Errorf("cannot create order_id index: %w", err)
	}

	createdIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "created_at", Value: 1}},
	}
	if _, err := r.collection.Indexes().CreateOne(ctx, createdIndex); err != nil {
		return fmt.Errorf("cannot create created_at index: %w", err)
	}

	r.logger.WithFields(log.Fields{
		"database":   r.dbName,
		"collection": transactionsTable,
	}).Info("Connected to MongoDB")
	return nil
}

func (r *TransactionRepo) Stop(ctx context.Context) error {
	if r.client != nil {
		if err := r.client.Disconnect(ctx); err != nil {
			return fmt.Errorf("cannot disconnect from MongoDB: %w", err)
		}
		r.logger.Info("Disconnected from MongoDB")
	}
	return nil
}

// Append inserts a settled transaction. One transaction per order is
// enforced by the unique order_id index.
func (r *TransactionRepo) Append(ctx context.Context, tx models.Transaction) error {
	doc, err := newTransactionDoc(tx)
	if err != nil {
		return err
	}

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: order %s", settlement.ErrDuplicateTransaction, tx.OrderID)
		}
		return fmt.Errorf("cannot insert transaction: %w", err)
	}
	return nil
}

// Remove deletes a transaction by id. Missing ids are not an error.
func (r *TransactionRepo) Remove(ctx context.Context, transactionID string) error {
	if _, err := r.collection.DeleteOne(ctx, bson.M{"_id": transactionID}); err != nil {
		return fmt.Errorf("cannot remove transaction: %w", err)
	}
	return nil
}

// List returns all transactions, oldest first
func (r *TransactionRepo) List(ctx context.Context) ([]models.Transaction, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("cannot find transactions: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []transactionDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("cannot decode transactions: %w", err)
	}

	out := make([]models.Transaction, 0, len(docs))
	for _, d := range docs {
		tx, err := d.transaction()
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}

// FindByOrderID returns the transaction settling an order
func (r *TransactionRepo) FindByOrderID(ctx context.Context, orderID string) (*models.Transaction, error) {
	var doc transactionDoc
	err := r.collection.FindOne(ctx, bson.M{"order_id": orderID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot find transaction by order_id: %w", err)
	}
	tx, err := doc.transaction()
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// transactionDoc stores money as Decimal128 so amounts survive the round trip exactly
type transactionDoc struct {
	ID            string               `bson:"_id"`
	OrderID       string               `bson:"order_id"`
	OrderNumber   string               `bson:"order_number"`
	TableNumber   *int                 `bson:"table_number,omitempty"`
	CustomerName  string               `bson:"customer_name,omitempty"`
	OrderType     string               `bson:"order_type"`
	Items         []transactionItemDoc `bson:"items"`
	Subtotal      primitive.Decimal128 `bson:"subtotal"`
	Discount      primitive.Decimal128 `bson:"discount"`
	Tax           primitive.Decimal128 `bson:"tax"`
	Total         primitive.Decimal128 `bson:"total"`
	PaymentMethod string               `bson:"payment_method"`
	Status        string               `bson:"status"`
	CreatedAt     time.Time            `bson:"created_at"`
	PaidAt        *time.Time           `bson:"paid_at,omitempty"`
}

type transactionItemDoc struct {
	ID                  string               `bson:"id"`
	MenuItemID          string               `bson:"menu_item_id"`
	Name                string               `bson:"name"`
	Price               primitive.Decimal128 `bson:"price"`
	Quantity            int                  `bson:"quantity"`
	Modifiers           map[string]string    `bson:"modifiers,omitempty"`
	SpecialInstructions string               `bson:"special_instructions,omitempty"`
	Station             string               `bson:"station"`
	EstimatedTime       int                  `bson:"estimated_time"`
}

func newTransactionDoc(tx models.Transaction) (transactionDoc, error) {
	doc := transactionDoc{
		ID:            tx.ID,
		OrderID:       tx.OrderID,
		OrderNumber:   tx.OrderNumber,
		TableNumber:   tx.TableNumber,
		CustomerName:  tx.CustomerName,
		OrderType:     string(tx.OrderType),
		PaymentMethod: tx.PaymentMethod,
		Status:        string(tx.Status),
		CreatedAt:     tx.CreatedAt,
		PaidAt:        tx.PaidAt,
		Items:         make([]transactionItemDoc, 0, len(tx.Items)),
	}

	var err error
	if doc.Subtotal, err = toDecimal128(tx.Subtotal); err != nil {
		return transactionDoc{}, err
	}
	if doc.Discount, err = toDecimal128(tx.Discount); err != nil {
		return transactionDoc{}, err
	}
	if doc.Tax, err = toDecimal128(tx.Tax); err != nil {
		return transactionDoc{}, err
	}
	if doc.Total, err = toDecimal128(tx.Total); err != nil {
		return transactionDoc{}, err
	}

	for _, item := range tx.Items {
		price, err := toDecimal128(item.Price)
		if err != nil {
			return transactionDoc{}, err
		}
		doc.Items = append(doc.Items, transactionItemDoc{
			ID:                  item.ID,
			MenuItemID:          item.MenuItemID,
			Name:                item.Name,
			Price:               price,
			Quantity:            item.Quantity,
			Modifiers:           item.Modifiers,
			SpecialInstructions: item.SpecialInstructions,
			Station:             string(item.Station),
			EstimatedTime:       item.EstimatedTime,
		})
	}
	return doc, nil
}

func (d transactionDoc) transaction() (models.Transaction, error) {
	tx := models.Transaction{
		ID:            d.ID,
		OrderID:       d.OrderID,
		OrderNumber:   d.OrderNumber,
		TableNumber:   d.TableNumber,
		CustomerName:  d.CustomerName,
		OrderType:     models.OrderType(d.OrderType),
		PaymentMethod: d.PaymentMethod,
		Status:        models.TransactionStatus(d.Status),
		CreatedAt:     d.CreatedAt,
		PaidAt:        d.PaidAt,
		Items:         make([]models.TransactionItem, 0, len(d.Items)),
	}

	var err error
	if tx.Subtotal, err = fromDecimal128(d.Subtotal); err != nil {
		return models.Transaction{}, err
	}
	if tx.Discount, err = fromDecimal128(d.Discount); err != nil {
		return models.Transaction{}, err
	}
	if tx.Tax, err = fromDecimal128(d.Tax); err != nil {
		return models.Transaction{}, err
	}
	if tx.Total, err = fromDecimal128(d.Total); err != nil {
		return models.Transaction{}, err
	}

	for _, item := range d.Items {
		price, err := fromDecimal128(item.Price)
		if err != nil {
			return models.Transaction{}, err
		}
		tx.Items = append(tx.Items, models.TransactionItem{
			ID:                  item.ID,
			MenuItemID:          item.MenuItemID,
			Name:                item.Name,
			Price:               price,
			Quantity:            item.Quantity,
			Modifiers:           item.Modifiers,
			SpecialInstructions: item.SpecialInstructions,
			Station:             models.Station(item.Station),
			EstimatedTime:       item.EstimatedTime,
		})
	}
	return tx, nil
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("cannot encode amount %s: %w", d, err)
	}
	return v, nil
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("cannot decode amount %s: %w", v, err)
	}
	return d, nil
}
