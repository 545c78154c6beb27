package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/d20sheet/internal/game/character"
	"github.com/cory-johannsen/d20sheet/internal/game/engine"
	"github.com/cory-johannsen/d20sheet/internal/game/item"
)

// ErrCharacterNotFound is returned when a character lookup yields no results.
var ErrCharacterNotFound = errors.New("character not found")

// DocumentStore persists character documents as JSONB. It implements
// engine.DocumentStore.
type DocumentStore struct {
	db *pgxpool.Pool
}

// NewDocumentStore creates a DocumentStore backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewDocumentStore(db *pgxpool.Pool) *DocumentStore {
	return &DocumentStore{db: db}
}

// Put inserts or replaces c and all of its items.
//
// Precondition: c must pass character.Validate.
// Postcondition: the stored items are exactly c.Items.
func (s *DocumentStore) Put(ctx context.Context, c *character.Character) error {
	if err := character.Validate(c); err != nil {
		return err
	}
	doc, err := character.MarshalDocument(c)
	if err != nil {
		return fmt.Errorf("encoding character: %w", err)
	}
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO characters (id, document) VALUES ($1, $2)
			ON CONFLICT (id) DO UPDATE SET document = EXCLUDED.document, updated_at = NOW()`,
			c.ID, doc,
		); err != nil {
			return fmt.Errorf("upserting character: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM character_items WHERE character_id = $1`, c.ID); err != nil {
			return fmt.Errorf("clearing items: %w", err)
		}
		return insertItems(ctx, tx, c.ID, c.Items)
	})
}

// Load returns character id with its items in insertion order.
//
// Postcondition: Returns the Character or ErrCharacterNotFound.
func (s *DocumentStore) Load(ctx context.Context, id string) (*character.Character, error) {
	var (
		doc     []byte
		updated time.Time
	)
	err := s.db.QueryRow(ctx,
		`SELECT document, updated_at FROM characters WHERE id = $1`, id,
	).Scan(&doc, &updated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCharacterNotFound
		}
		return nil, fmt.Errorf("querying character: %w", err)
	}
	c, err := character.UnmarshalDocument(doc)
	if err != nil {
		return nil, err
	}
	c.ID = id
	c.UpdatedAt = updated

	rows, err := s.db.Query(ctx,
		`SELECT document FROM character_items WHERE character_id = $1 ORDER BY position ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scanning item row: %w", err)
		}
		it, err := item.DecodeJSON(raw)
		if err != nil {
			return nil, fmt.Errorf("decoding item of %q: %w", id, err)
		}
		c.Items = append(c.Items, it)
	}
	return c, rows.Err()
}

// SaveSheet writes the derived values and hit points of a pass.
//
// Postcondition: Returns nil on success, ErrCharacterNotFound if no row updated.
func (s *DocumentStore) SaveSheet(ctx context.Context, id string, u engine.SheetUpdate) error {
	values, err := json.Marshal(u.Values)
	if err != nil {
		return fmt.Errorf("encoding values: %w", err)
	}
	hp, err := json.Marshal(u.HP)
	if err != nil {
		return fmt.Errorf("encoding hp: %w", err)
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE characters
		SET document = jsonb_set(jsonb_set(document, '{derived}', $2::jsonb), '{hp}', $3::jsonb),
		    pass_id = $4, updated_at = NOW()
		WHERE id = $1`,
		id, values, hp, u.PassID,
	)
	if err != nil {
		return fmt.Errorf("saving sheet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCharacterNotFound
	}
	return nil
}

// CreateItems adds items to character id, replacing any with the same id.
//
// Postcondition: Returns ErrCharacterNotFound if id does not exist.
func (s *DocumentStore) CreateItems(ctx context.Context, id string, items []item.Item) error {
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		return insertItems(ctx, tx, id, items)
	})
	if isForeignKeyError(err) {
		return ErrCharacterNotFound
	}
	return err
}

// DeleteItems removes the listed items from character id. Unknown ids are
// ignored.
func (s *DocumentStore) DeleteItems(ctx context.Context, id string, itemIDs []string) error {
	if _, err := s.db.Exec(ctx,
		`DELETE FROM character_items WHERE character_id = $1 AND id = ANY($2)`, id, itemIDs,
	); err != nil {
		return fmt.Errorf("deleting items: %w", err)
	}
	return nil
}

// ListDependents returns the ids of documents whose master is id.
func (s *DocumentStore) ListDependents(ctx context.Context, id string) ([]string, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id FROM characters WHERE document->>'master' = $1 ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("listing dependents: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scanning dependents: %w", err)
	}
	return ids, nil
}

func insertItems(ctx context.Context, tx pgx.Tx, characterID string, items []item.Item) error {
	if len(items) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, it := range items {
		data, err := json.Marshal(item.Envelope{Item: it})
		if err != nil {
			return fmt.Errorf("encoding item %q: %w", it.Base().ID, err)
		}
		batch.Queue(`
			INSERT INTO character_items (character_id, id, document) VALUES ($1, $2, $3)
			ON CONFLICT (character_id, id) DO UPDATE SET document = EXCLUDED.document`,
			characterID, it.Base().ID, data,
		)
	}
	br := tx.SendBatch(ctx, batch)
	for range items {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("inserting item: %w", err)
		}
	}
	return br.Close()
}

// isForeignKeyError checks for SQLSTATE 23503 (foreign_key_violation).
func isForeignKeyError(err error) bool {
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23503"
	}
	return false
}
