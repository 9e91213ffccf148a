package receipt

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const (
	bucketName     = "receipts"
	tripBucketName = "trips"
)

// DB defines the interface for database operations
type DB interface {
	// SaveReceipt saves a receipt to the database
	SaveReceipt(receipt *Receipt) error

	// GetReceipt retrieves a receipt by ID
	GetReceipt(id string) (*Receipt, error)

	// ListReceipts returns all receipts
	ListReceipts() ([]*Receipt, error)

	// DeleteReceipt removes a receipt from the database
	DeleteReceipt(id string) error

	// SaveTrip saves a trip to the database
	SaveTrip(trip *Trip) error

	// GetTrip retrieves a trip by ID
	GetTrip(id string) (*Trip, error)

	// ListTrips returns all trips
	ListTrips() ([]*Trip, error)

	// DeleteTrip removes a trip from the database
	DeleteTrip(id string) error

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	// Create buckets if they don't exist
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(bucketName)); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(tripBucketName)); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// SaveReceipt saves a receipt to the database
func (b *BoltDB) SaveReceipt(receipt *Receipt) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		data, err := json.Marshal(receipt)
		if err != nil {
			return fmt.Errorf("marshaling receipt: %w", err)
		}
		return bucket.Put([]byte(receipt.ID), data)
	})
}

// GetReceipt retrieves a receipt by ID
func (b *BoltDB) GetReceipt(id string) (*Receipt, error) {
	var receipt *Receipt
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		data := bucket.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("receipt not found: %s", id)
		}
		return json.Unmarshal(data, &receipt)
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// ListReceipts returns all receipts
func (b *BoltDB) ListReceipts() ([]*Receipt, error) {
	receipts := make([]*Receipt, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		return bucket.ForEach(func(k, v []byte) error {
			var receipt Receipt
			if err := json.Unmarshal(v, &receipt); err != nil {
				return fmt.Errorf("unmarshaling receipt: %w", err)
			}
			receipts = append(receipts, &receipt)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return receipts, nil
}

// DeleteReceipt removes a receipt from the database
func (b *BoltDB) DeleteReceipt(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		return bucket.Delete([]byte(id))
	})
}

// SaveTrip saves a trip to the database
func (b *BoltDB) SaveTrip(trip *Trip) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(tripBucketName))
		data, err := json.Marshal(trip)
		if err != nil {
			return fmt.Errorf("marshaling trip: %w", err)
		}
		return bucket.Put([]byte(trip.ID), data)
	})
}

// GetTrip retrieves a trip by ID
func (b *BoltDB) GetTrip(id string) (*Trip, error) {
	var trip *Trip
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(tripBucketName))
		data := bucket.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("trip not found: %s", id)
		}
		return json.Unmarshal(data, &trip)
	})
	if err != nil {
		return nil, err
	}
	return trip, nil
}

// ListTrips returns all trips
func (b *BoltDB) ListTrips() ([]*Trip, error) {
	trips := make([]*Trip, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(tripBucketName))
		return bucket.ForEach(func(k, v []byte) error {
			var trip Trip
			if err := json.Unmarshal(v, &trip); err != nil {
				return fmt.Errorf("unmarshaling trip: %w", err)
			}
			trips = append(trips, &trip)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return trips, nil
}

// DeleteTrip removes a trip from the database
func (b *BoltDB) DeleteTrip(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(tripBucketName))
		return bucket.Delete([]byte(id))
	})
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
