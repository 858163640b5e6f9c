package board

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/opencork/corkboard/store"
)

// Board is the root of the hierarchy. ColumnsOrder is always exactly the
// live columns of the board, each appearing once, in display order.
type Board struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	Owner        string   `json:"owner"`
	ColumnsOrder []string `json:"columnsOrder"`

	Version   int64     `json:"-"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// Column belongs to exactly one board; BoardID never changes. CardsOrder
// holds the column's live cards in display order.
type Column struct {
	ID         string   `json:"id"`
	BoardID    string   `json:"boardId"`
	Name       string   `json:"name"`
	CardsOrder []string `json:"cardsOrder"`

	Version   int64     `json:"-"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// Card belongs to exactly one column. BoardID is fixed at creation; ColumnID
// changes only through MoveCard and always stays within the same board.
type Card struct {
	ID          string `json:"id"`
	BoardID     string `json:"boardId"`
	ColumnID    string `json:"columnId"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	Version   int64     `json:"-"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// ColumnView is a column with its cards resolved in display order.
type ColumnView struct {
	Column *Column `json:"column"`
	Cards  []*Card `json:"cards"`
}

// BoardView is the fully assembled board: columns in display order, each
// with its cards.
type BoardView struct {
	Board   *Board        `json:"board"`
	Columns []*ColumnView `json:"columns"`
}

// encode marshals an entity payload into a record's data.
func encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return data, nil
}

// decode unmarshals a record payload and copies the store-managed fields.
func decodeBoard(rec *store.Record) (*Board, error) {
	var b Board
	if err := json.Unmarshal(rec.Data, &b); err != nil {
		return nil, fmt.Errorf("decode board %s: %w", rec.ID, err)
	}
	b.Version = rec.Version
	b.CreatedAt = rec.CreatedAt
	b.UpdatedAt = rec.UpdatedAt
	return &b, nil
}

func decodeColumn(rec *store.Record) (*Column, error) {
	var c Column
	if err := json.Unmarshal(rec.Data, &c); err != nil {
		return nil, fmt.Errorf("decode column %s: %w", rec.ID, err)
	}
	c.Version = rec.Version
	c.CreatedAt = rec.CreatedAt
	c.UpdatedAt = rec.UpdatedAt
	return &c, nil
}

func decodeCard(rec *store.Record) (*Card, error) {
	var c Card
	if err := json.Unmarshal(rec.Data, &c); err != nil {
		return nil, fmt.Errorf("decode card %s: %w", rec.ID, err)
	}
	c.Version = rec.Version
	c.CreatedAt = rec.CreatedAt
	c.UpdatedAt = rec.UpdatedAt
	return &c, nil
}
