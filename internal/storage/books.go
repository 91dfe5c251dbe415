package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/folio-labs/folio/internal/types"
)

// BookStore persists Book rows.
type BookStore struct {
	store *Store
}

// Create inserts a book, or updates title and counts when a book with the
// same source_id already exists. The stored row is returned either way.
func (b *BookStore) Create(ctx context.Context, book types.Book) (*types.Book, error) {
	now := time.Now().UTC()
	if book.ID == "" {
		book.ID = uuid.NewString()
	}
	if book.CreatedAt.IsZero() {
		book.CreatedAt = now
	}
	book.UpdatedAt = now

	if book.SourceID != "" {
		if existing, err := b.GetBySourceID(ctx, book.SourceID); err == nil {
			book.ID = existing.ID
			book.CreatedAt = existing.CreatedAt
		}
	}

	_, err := b.store.db.ExecContext(ctx, `
		INSERT INTO books (id, source_id, title, total_words, chapter_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			total_words = excluded.total_words,
			chapter_count = excluded.chapter_count,
			updated_at = excluded.updated_at
	`, book.ID, nullString(book.SourceID), book.Title, book.TotalWords, book.ChapterCount,
		timeArg(book.CreatedAt), timeArg(book.UpdatedAt))
	if err != nil {
		return nil, fmt.Errorf("saving book: %w", err)
	}

	return &book, nil
}

// Get returns the book with the given id.
func (b *BookStore) Get(ctx context.Context, id string) (*types.Book, error) {
	row := b.store.db.QueryRowContext(ctx, `
		SELECT id, source_id, title, total_words, chapter_count, created_at, updated_at
		FROM books WHERE id = ?
	`, id)
	return scanBook(row)
}

// GetBySourceID returns the book registered for an external source document.
func (b *BookStore) GetBySourceID(ctx context.Context, sourceID string) (*types.Book, error) {
	row := b.store.db.QueryRowContext(ctx, `
		SELECT id, source_id, title, total_words, chapter_count, created_at, updated_at
		FROM books WHERE source_id = ?
	`, sourceID)
	return scanBook(row)
}

// List returns all books ordered by most recently updated.
func (b *BookStore) List(ctx context.Context) ([]types.Book, error) {
	rows, err := b.store.db.QueryContext(ctx, `
		SELECT id, source_id, title, total_words, chapter_count, created_at, updated_at
		FROM books ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("listing books: %w", err)
	}
	defer rows.Close()

	var books []types.Book
	for rows.Next() {
		book, err := scanBookRow(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, *book)
	}
	return books, rows.Err()
}

// UpdateCounts refreshes a book's word and chapter counts from its
// stored chapters.
func (b *BookStore) UpdateCounts(ctx context.Context, bookID string) error {
	_, err := b.store.db.ExecContext(ctx, `
		UPDATE books SET
			total_words = COALESCE((SELECT SUM(word_count) FROM recent_chapters WHERE book_id = ?), 0),
			chapter_count = COALESCE((SELECT COUNT(*) FROM recent_chapters WHERE book_id = ?), 0),
			updated_at = ?
		WHERE id = ?
	`, bookID, bookID, timeArg(time.Now().UTC()), bookID)
	if err != nil {
		return fmt.Errorf("updating book counts: %w", err)
	}
	return nil
}

// ListMissingContext returns books that have no book_contexts row.
// Used by the recovery scanner.
func (b *BookStore) ListMissingContext(ctx context.Context) ([]types.Book, error) {
	rows, err := b.store.db.QueryContext(ctx, `
		SELECT b.id, b.source_id, b.title, b.total_words, b.chapter_count, b.created_at, b.updated_at
		FROM books b
		LEFT JOIN book_contexts c ON c.book_id = b.id
		WHERE c.book_id IS NULL
		ORDER BY b.created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("listing books missing context: %w", err)
	}
	defer rows.Close()

	var books []types.Book
	for rows.Next() {
		book, err := scanBookRow(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, *book)
	}
	return books, rows.Err()
}

func scanBook(row *sql.Row) (*types.Book, error) {
	var book types.Book
	var sourceID sql.NullString
	var createdAt, updatedAt sql.NullString

	err := row.Scan(&book.ID, &sourceID, &book.Title, &book.TotalWords, &book.ChapterCount,
		&createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning book: %w", err)
	}
	book.SourceID = sourceID.String
	book.CreatedAt = parseTime(createdAt)
	book.UpdatedAt = parseTime(updatedAt)
	return &book, nil
}

func scanBookRow(rows *sql.Rows) (*types.Book, error) {
	var book types.Book
	var sourceID sql.NullString
	var createdAt, updatedAt sql.NullString

	err := rows.Scan(&book.ID, &sourceID, &book.Title, &book.TotalWords, &book.ChapterCount,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("scanning book: %w", err)
	}
	book.SourceID = sourceID.String
	book.CreatedAt = parseTime(createdAt)
	book.UpdatedAt = parseTime(updatedAt)
	return &book, nil
}
