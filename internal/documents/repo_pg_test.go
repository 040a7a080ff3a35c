package documents

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockRepo(t *testing.T) (*PGRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &PGRepo{DB: db}, mock
}

func documentRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "file_name", "mime_type", "size_bytes", "storage_provider", "storage_key", "status", "created_at"})
}

func TestPGRepoCreateDefaults(t *testing.T) {
	repo, mock := newMockRepo(t)
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO documents")).
		WithArgs("doc-1", "user-1", "nda.pdf", "application/pdf", int64(42), "local", "k/nda.pdf", StatusUploaded, created).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), Document{
		ID:         "doc-1",
		UserID:     "user-1",
		FileName:   "nda.pdf",
		MimeType:   "application/pdf",
		SizeBytes:  42,
		StorageKey: "k/nda.pdf",
		CreatedAt:  created,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGRepoGetByIDScopesToOwner(t *testing.T) {
	repo, mock := newMockRepo(t)
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE user_id = $1 AND id = $2")).
		WithArgs("user-1", "doc-1").
		WillReturnRows(documentRows().AddRow("doc-1", "user-1", "nda.pdf", "application/pdf", int64(42), nil, "k", "analyzed", created))

	doc, err := repo.GetByID(context.Background(), "user-1", "doc-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if doc.Status != StatusAnalyzed || doc.StorageProvider != "" || doc.StorageKey != "k" {
		t.Fatalf("unexpected doc: %+v", doc)
	}

	mock.ExpectQuery(regexp.QuoteMeta("WHERE user_id = $1 AND id = $2")).
		WithArgs("user-2", "doc-1").
		WillReturnError(sql.ErrNoRows)
	if _, err := repo.GetByID(context.Background(), "user-2", "doc-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGRepoListByUserClampsLimit(t *testing.T) {
	repo, mock := newMockRepo(t)
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC")).
		WithArgs("user-1", 100, 0).
		WillReturnRows(documentRows().
			AddRow("doc-2", "user-1", "b.docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", int64(1), "s3", "k2", "uploaded", created).
			AddRow("doc-1", "user-1", "a.pdf", "application/pdf", int64(2), "s3", "k1", "analyzed", created.Add(-time.Hour)))

	docs, err := repo.ListByUser(context.Background(), "user-1", 500, -3)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(docs) != 2 || docs[0].ID != "doc-2" || docs[1].Status != StatusAnalyzed {
		t.Fatalf("unexpected docs: %+v", docs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGRepoUpdateStatus(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE documents SET status = $1 WHERE id = $2")).
		WithArgs(StatusAnalyzed, "doc-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := repo.UpdateStatus(context.Background(), "doc-1", StatusAnalyzed); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	mock.ExpectExec(regexp.QuoteMeta("UPDATE documents SET status = $1 WHERE id = $2")).
		WithArgs(StatusAnalyzed, "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	if err := repo.UpdateStatus(context.Background(), "missing", StatusAnalyzed); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
