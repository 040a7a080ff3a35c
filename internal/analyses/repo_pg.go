package analyses

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts an analysis result. The JSON sections are stored as JSONB.
// Postgres rejects NUL in TEXT and JSONB, so NUL characters are dropped.
func (r *PGRepo) Create(ctx context.Context, result AnalysisResult) error {
	const query = `
INSERT INTO analysis_results (id, document_id, extracted_info, risks_identified, summary, analysis_date, processing_time)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

	info, err := json.Marshal(stripNUL(result.ExtractedInfo))
	if err != nil {
		return fmt.Errorf("marshal extracted_info: %w", err)
	}
	risks, err := json.Marshal(stripNUL(result.RisksIdentified))
	if err != nil {
		return fmt.Errorf("marshal risks_identified: %w", err)
	}
	_, err = r.DB.ExecContext(ctx, query,
		result.ID,
		result.DocumentID,
		info,
		risks,
		strings.ReplaceAll(result.Summary, "\x00", ""),
		result.AnalysisDate,
		result.ProcessingTime,
	)
	return err
}

// ListByDocument returns results for a document, newest first.
func (r *PGRepo) ListByDocument(ctx context.Context, documentID string) ([]AnalysisResult, error) {
	const query = `
SELECT id, document_id, extracted_info, risks_identified, summary, analysis_date, processing_time
FROM analysis_results
WHERE document_id = $1
ORDER BY analysis_date DESC, id DESC`

	rows, err := r.DB.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []AnalysisResult{}
	for rows.Next() {
		var res AnalysisResult
		var info, risks []byte
		var summary sql.NullString
		var processing sql.NullInt64
		if err := rows.Scan(&res.ID, &res.DocumentID, &info, &risks, &summary, &res.AnalysisDate, &processing); err != nil {
			return nil, err
		}
		if res.ExtractedInfo, err = decodeSection(info); err != nil {
			return nil, fmt.Errorf("decode extracted_info: %w", err)
		}
		if res.RisksIdentified, err = decodeSection(risks); err != nil {
			return nil, fmt.Errorf("decode risks_identified: %w", err)
		}
		res.Summary = summary.String
		res.ProcessingTime = int(processing.Int64)
		out = append(out, res)
	}
	return out, rows.Err()
}

// stripNUL removes NUL from every string and key of a decoded JSON value.
func stripNUL(v any) any {
	switch t := v.(type) {
	case string:
		return strings.ReplaceAll(t, "\x00", "")
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[strings.ReplaceAll(k, "\x00", "")] = stripNUL(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = stripNUL(val)
		}
		return out
	default:
		return v
	}
}

func decodeSection(raw []byte) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

var _ Repo = (*PGRepo)(nil)
