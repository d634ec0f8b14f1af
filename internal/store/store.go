// Package store is the PostgreSQL source of truth for Terms and Translations,
// their derived lemma index entries, and the sensitive-terms set.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/lexicon"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/redact"
	apperrors "github.com/Adithya-Monish-Kumar-K/glossary-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/pkg/postgres"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

//go:embed schema.sql
var schema string

const foreignKeyViolation = "23503"

type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

func New(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "store"),
	}
}

// Migrate creates any missing tables. It is safe to run repeatedly.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	s.logger.Info("schema up to date")
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func entityTable(kind lexicon.Kind) (string, error) {
	switch kind {
	case lexicon.KindTerm:
		return "terms", nil
	case lexicon.KindTranslation:
		return "translations", nil
	}
	return "", fmt.Errorf("%w: unknown kind %q", apperrors.ErrInvalidInput, kind)
}

func indexTable(kind lexicon.Kind) (string, error) {
	switch kind {
	case lexicon.KindTerm:
		return "term_index", nil
	case lexicon.KindTranslation:
		return "translation_index", nil
	}
	return "", fmt.Errorf("%w: unknown kind %q", apperrors.ErrInvalidInput, kind)
}

// entityColumns selects a term's own id as its term_id so both kinds scan
// the same way.
func entityColumns(kind lexicon.Kind) string {
	if kind == lexicon.KindTerm {
		return "id, id, value, lang, variants, updated_at"
	}
	return "id, term_id, value, lang, variants, updated_at"
}

func scanEntity(row scanner, kind lexicon.Kind) (lexicon.Entity, error) {
	e := lexicon.Entity{Kind: kind}
	var variants pq.StringArray
	if err := row.Scan(&e.ID, &e.TermID, &e.Value, &e.Lang, &variants, &e.UpdatedAt); err != nil {
		return lexicon.Entity{}, err
	}
	e.Variants = []string(variants)
	if kind == lexicon.KindTerm {
		e.TermID = ""
	}
	return e, nil
}

// GetEntity loads one Term or Translation.
func (s *Store) GetEntity(ctx context.Context, ref lexicon.Ref) (lexicon.Entity, error) {
	return getEntity(ctx, s.db.DB, ref, false)
}

func getEntity(ctx context.Context, q queryer, ref lexicon.Ref, forUpdate bool) (lexicon.Entity, error) {
	table, err := entityTable(ref.Kind)
	if err != nil {
		return lexicon.Entity{}, err
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, entityColumns(ref.Kind), table)
	if forUpdate {
		query += ` FOR UPDATE`
	}
	e, err := scanEntity(q.QueryRowContext(ctx, query, ref.ID), ref.Kind)
	if errors.Is(err, sql.ErrNoRows) {
		return lexicon.Entity{}, fmt.Errorf("%s: %w", ref, apperrors.ErrEntityNotFound)
	}
	if err != nil {
		return lexicon.Entity{}, fmt.Errorf("querying %s: %w", ref, err)
	}
	return e, nil
}

// GetEntities loads every entity referenced by refs. Missing refs are
// omitted from the result.
func (s *Store) GetEntities(ctx context.Context, refs []lexicon.Ref) ([]lexicon.Entity, error) {
	ids := make(map[lexicon.Kind][]string)
	for _, ref := range refs {
		if !slices.Contains(ids[ref.Kind], ref.ID) {
			ids[ref.Kind] = append(ids[ref.Kind], ref.ID)
		}
	}

	var out []lexicon.Entity
	for _, kind := range []lexicon.Kind{lexicon.KindTerm, lexicon.KindTranslation} {
		if len(ids[kind]) == 0 {
			continue
		}
		table, _ := entityTable(kind)
		rows, err := s.db.DB.QueryContext(ctx,
			fmt.Sprintf(`SELECT %s FROM %s WHERE id = ANY($1)`, entityColumns(kind), table),
			pq.Array(ids[kind]),
		)
		if err != nil {
			return nil, fmt.Errorf("querying %s batch: %w", table, err)
		}
		entities, err := collectEntities(rows, kind)
		if err != nil {
			return nil, err
		}
		out = append(out, entities...)
	}
	return out, nil
}

// ListEntities pages through one collection in id order.
func (s *Store) ListEntities(ctx context.Context, kind lexicon.Kind, afterID string, limit int) ([]lexicon.Entity, error) {
	table, err := entityTable(kind)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.DB.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s FROM %s WHERE id > $1 ORDER BY id LIMIT $2`, entityColumns(kind), table),
		afterID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", table, err)
	}
	return collectEntities(rows, kind)
}

// ListTranslations returns the translations of one term, newest first.
func (s *Store) ListTranslations(ctx context.Context, termID string) ([]lexicon.Entity, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s FROM translations WHERE term_id = $1 ORDER BY updated_at DESC, id`,
			entityColumns(lexicon.KindTranslation)),
		termID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing translations of %s: %w", termID, err)
	}
	return collectEntities(rows, lexicon.KindTranslation)
}

func collectEntities(rows *sql.Rows, kind lexicon.Kind) ([]lexicon.Entity, error) {
	defer rows.Close()
	var out []lexicon.Entity
	for rows.Next() {
		e, err := scanEntity(rows, kind)
		if err != nil {
			return nil, fmt.Errorf("scanning %s row: %w", kind, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// CreateEntity inserts a new Term or Translation with a fresh id. A
// translation whose parent term does not exist fails with ErrEntityNotFound.
func (s *Store) CreateEntity(ctx context.Context, e lexicon.Entity) (lexicon.Entity, error) {
	table, err := entityTable(e.Kind)
	if err != nil {
		return lexicon.Entity{}, err
	}
	e.ID = uuid.NewString()
	e.UpdatedAt = time.Now().UTC()
	variants := pq.StringArray(nonNil(e.Variants))

	if e.Kind == lexicon.KindTerm {
		_, err = s.db.DB.ExecContext(ctx,
			`INSERT INTO terms (id, value, lang, variants, updated_at) VALUES ($1, $2, $3, $4, $5)`,
			e.ID, e.Value, e.Lang, variants, e.UpdatedAt,
		)
	} else {
		_, err = s.db.DB.ExecContext(ctx,
			`INSERT INTO translations (id, term_id, value, lang, variants, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
			e.ID, e.TermID, e.Value, e.Lang, variants, e.UpdatedAt,
		)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
		return lexicon.Entity{}, fmt.Errorf("term %s: %w", e.TermID, apperrors.ErrEntityNotFound)
	}
	if err != nil {
		return lexicon.Entity{}, fmt.Errorf("inserting into %s: %w", table, err)
	}
	return e, nil
}

// UpdateEntity replaces value and variants and returns the row as it was
// before and after the write.
func (s *Store) UpdateEntity(ctx context.Context, ref lexicon.Ref, value string, variants []string) (before, after lexicon.Entity, err error) {
	table, err := entityTable(ref.Kind)
	if err != nil {
		return before, after, err
	}
	err = s.db.InTx(ctx, func(tx *sql.Tx) error {
		before, err = getEntity(ctx, tx, ref, true)
		if err != nil {
			return err
		}
		after, err = scanEntity(tx.QueryRowContext(ctx,
			fmt.Sprintf(`UPDATE %s SET value = $2, variants = $3, updated_at = NOW() WHERE id = $1 RETURNING %s`,
				table, entityColumns(ref.Kind)),
			ref.ID, value, pq.StringArray(nonNil(variants)),
		), ref.Kind)
		if err != nil {
			return fmt.Errorf("updating %s: %w", ref, err)
		}
		return nil
	})
	return before, after, err
}

// DeleteEntity removes an entity and returns every row that was deleted.
// Deleting a Term takes its Translations with it; they are returned first.
func (s *Store) DeleteEntity(ctx context.Context, ref lexicon.Ref) ([]lexicon.Entity, error) {
	table, err := entityTable(ref.Kind)
	if err != nil {
		return nil, err
	}
	var deleted []lexicon.Entity
	err = s.db.InTx(ctx, func(tx *sql.Tx) error {
		if ref.Kind == lexicon.KindTerm {
			rows, err := tx.QueryContext(ctx,
				fmt.Sprintf(`DELETE FROM translations WHERE term_id = $1 RETURNING %s`, entityColumns(lexicon.KindTranslation)),
				ref.ID,
			)
			if err != nil {
				return fmt.Errorf("deleting translations of %s: %w", ref, err)
			}
			children, err := collectEntities(rows, lexicon.KindTranslation)
			if err != nil {
				return err
			}
			deleted = append(deleted, children...)
		}
		e, err := scanEntity(tx.QueryRowContext(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE id = $1 RETURNING %s`, table, entityColumns(ref.Kind)),
			ref.ID,
		), ref.Kind)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%s: %w", ref, apperrors.ErrEntityNotFound)
		}
		if err != nil {
			return fmt.Errorf("deleting %s: %w", ref, err)
		}
		deleted = append(deleted, e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// PutIndexEntry upserts entry and reports whether anything was written. An
// identical stored blob leaves the row untouched.
func (s *Store) PutIndexEntry(ctx context.Context, entry index.Entry) (bool, error) {
	table, err := indexTable(entry.Ref.Kind)
	if err != nil {
		return false, err
	}
	blob, err := entry.Lemmas.Serialize()
	if err != nil {
		return false, err
	}
	res, err := s.db.DB.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %[1]s (ref_id, term_id, lang, lemmas, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (ref_id) DO UPDATE
		SET term_id = EXCLUDED.term_id, lang = EXCLUDED.lang, lemmas = EXCLUDED.lemmas, updated_at = NOW()
		WHERE %[1]s.lemmas IS DISTINCT FROM EXCLUDED.lemmas
		   OR %[1]s.lang IS DISTINCT FROM EXCLUDED.lang
		   OR %[1]s.term_id IS DISTINCT FROM EXCLUDED.term_id`, table),
		entry.Ref.ID, entry.Ref.TermID, entry.Lang, blob,
	)
	if err != nil {
		return false, fmt.Errorf("upserting %s entry %s: %w", table, entry.Ref.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *Store) DeleteIndexEntry(ctx context.Context, ref lexicon.Ref) error {
	table, err := indexTable(ref.Kind)
	if err != nil {
		return err
	}
	if _, err := s.db.DB.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE ref_id = $1`, table), ref.ID); err != nil {
		return fmt.Errorf("deleting %s entry %s: %w", table, ref.ID, err)
	}
	return nil
}

// PruneIndexEntries deletes the entries of kind whose entity no longer
// exists and returns their refs.
func (s *Store) PruneIndexEntries(ctx context.Context, kind lexicon.Kind) ([]lexicon.Ref, error) {
	table, err := indexTable(kind)
	if err != nil {
		return nil, err
	}
	source, _ := entityTable(kind)
	rows, err := s.db.DB.QueryContext(ctx, fmt.Sprintf(`
		DELETE FROM %s i
		WHERE NOT EXISTS (SELECT 1 FROM %s e WHERE e.id = i.ref_id)
		RETURNING i.ref_id, i.term_id`, table, source))
	if err != nil {
		return nil, fmt.Errorf("pruning %s: %w", table, err)
	}
	defer rows.Close()
	var pruned []lexicon.Ref
	for rows.Next() {
		ref := lexicon.Ref{Kind: kind}
		if err := rows.Scan(&ref.ID, &ref.TermID); err != nil {
			return nil, fmt.Errorf("scanning pruned %s row: %w", table, err)
		}
		pruned = append(pruned, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pruning %s: %w", table, err)
	}
	if len(pruned) > 0 {
		s.logger.Info("pruned orphaned index entries", "table", table, "count", len(pruned))
	}
	return pruned, nil
}

// GetIndexEntry reads one stored entry. Corrupt blobs fail with
// ErrCorruptIndex.
func (s *Store) GetIndexEntry(ctx context.Context, ref lexicon.Ref) (index.Entry, error) {
	table, err := indexTable(ref.Kind)
	if err != nil {
		return index.Entry{}, err
	}
	row := s.db.DB.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT ref_id, term_id, lang, lemmas FROM %s WHERE ref_id = $1`, table), ref.ID)
	entry, err := scanIndexEntry(row, ref.Kind)
	if errors.Is(err, sql.ErrNoRows) {
		return index.Entry{}, fmt.Errorf("index entry %s: %w", ref, apperrors.ErrEntityNotFound)
	}
	return entry, err
}

// ListIndexEntries returns every stored entry for lang across both kinds.
func (s *Store) ListIndexEntries(ctx context.Context, lang lexicon.Lang) ([]index.Entry, error) {
	var out []index.Entry
	for _, kind := range []lexicon.Kind{lexicon.KindTerm, lexicon.KindTranslation} {
		table, _ := indexTable(kind)
		rows, err := s.db.DB.QueryContext(ctx,
			fmt.Sprintf(`SELECT ref_id, term_id, lang, lemmas FROM %s WHERE lang = $1 ORDER BY ref_id`, table), lang)
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", table, err)
		}
		err = func() error {
			defer rows.Close()
			for rows.Next() {
				entry, err := scanIndexEntry(rows, kind)
				if err != nil {
					return err
				}
				out = append(out, entry)
			}
			return rows.Err()
		}()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func scanIndexEntry(row scanner, kind lexicon.Kind) (index.Entry, error) {
	entry := index.Entry{Ref: lexicon.Ref{Kind: kind}}
	var blob string
	if err := row.Scan(&entry.Ref.ID, &entry.Ref.TermID, &entry.Lang, &blob); err != nil {
		return index.Entry{}, err
	}
	lemmas, err := index.Deserialize(blob)
	if err != nil {
		return index.Entry{}, fmt.Errorf("index entry %s: %w", entry.Ref, err)
	}
	entry.Lemmas = lemmas
	return entry, nil
}

// SensitiveTerms returns the redaction set, sorted.
func (s *Store) SensitiveTerms(ctx context.Context) ([]string, error) {
	rows, err := s.db.DB.QueryContext(ctx, `SELECT term FROM sensitive_terms ORDER BY term`)
	if err != nil {
		return nil, fmt.Errorf("listing sensitive terms: %w", err)
	}
	defer rows.Close()
	var terms []string
	for rows.Next() {
		var term string
		if err := rows.Scan(&term); err != nil {
			return nil, fmt.Errorf("scanning sensitive term: %w", err)
		}
		terms = append(terms, term)
	}
	return terms, rows.Err()
}

// ReplaceSensitiveTerms swaps the whole set atomically. Terms are stored
// normalized the way the redaction matcher compares them.
func (s *Store) ReplaceSensitiveTerms(ctx context.Context, terms []string) error {
	cleaned := redact.NewTerms(terms...).List()
	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM sensitive_terms`); err != nil {
			return fmt.Errorf("clearing sensitive terms: %w", err)
		}
		if len(cleaned) == 0 {
			return nil
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sensitive_terms (term) SELECT unnest($1::text[])`, pq.Array(cleaned)); err != nil {
			return fmt.Errorf("inserting sensitive terms: %w", err)
		}
		return nil
	})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
