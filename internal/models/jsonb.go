package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// The embedded lists of a request are stored as JSONB columns.

type OfferLog []Offer

type BlockList []BlockEntry

type NotificationHandles []NotificationHandle

func (l OfferLog) Value() (driver.Value, error) { return marshalList(l) }

func (l *OfferLog) Scan(src interface{}) error { return scanList(src, l) }

func (l BlockList) Value() (driver.Value, error) { return marshalList(l) }

func (l *BlockList) Scan(src interface{}) error { return scanList(src, l) }

func (l NotificationHandles) Value() (driver.Value, error) { return marshalList(l) }

func (l *NotificationHandles) Scan(src interface{}) error { return scanList(src, l) }

func marshalList(v interface{}) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	// nil slices marshal to null; the columns are NOT NULL
	if string(b) == "null" {
		return []byte("[]"), nil
	}
	return b, nil
}

func scanList(src interface{}, dst interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("models: cannot scan %T into %T", src, dst)
	}
	return json.Unmarshal(data, dst)
}
