package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bserrors "github.com/felipestanzani/beyondsight/internal/errors"
	"github.com/felipestanzani/beyondsight/internal/graph"
)

// Save replaces the stored snapshot with g in one transaction.
func (db *DB) Save(ctx context.Context, g *graph.Graph) (err error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "DELETE FROM edges; DELETE FROM nodes;"); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}

	nodeStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO nodes (id, kind, key, name, absolute_path, file_path, field_types, signature, return_type, param_types)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer nodeStmt.Close()

	for _, n := range g.Nodes() {
		fieldTypes, err := encodeList(n.FieldTypes)
		if err != nil {
			return err
		}
		paramTypes, err := encodeList(n.ParameterTypes)
		if err != nil {
			return err
		}
		if _, err := nodeStmt.ExecContext(ctx,
			n.ID, n.Kind, n.Key, n.Name,
			nullIfEmpty(n.AbsolutePath), nullIfEmpty(n.FilePath), fieldTypes,
			nullIfEmpty(n.Signature), nullIfEmpty(n.ReturnType), paramTypes,
		); err != nil {
			return fmt.Errorf("insert node %d: %w", n.ID, err)
		}
	}

	edgeStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO edges (id, kind, from_id, to_id, line, created_at, confidence)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer edgeStmt.Close()

	for _, e := range g.Edges() {
		if _, err := edgeStmt.ExecContext(ctx,
			e.ID, e.Kind, e.FromID, e.ToID, e.Line, e.CreatedAt.UnixNano(), e.Confidence,
		); err != nil {
			return fmt.Errorf("insert edge %d: %w", e.ID, err)
		}
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES ('saved_at', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return err
	}

	return tx.Commit()
}

// Load rebuilds a frozen graph from the stored snapshot. Edges keep their
// line, creation time and confidence.
func (db *DB) Load(ctx context.Context) (*graph.Graph, error) {
	b := graph.NewBuilder()
	ids := make(map[int64]int64)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, kind, key, name, absolute_path, file_path, field_types, signature, return_type, param_types
		 FROM nodes ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id                                 int64
			kind, key, name                    string
			absPath, filePath, fieldTypes, sig sql.NullString
			returnType, paramTypes             sql.NullString
		)
		if err := rows.Scan(&id, &kind, &key, &name, &absPath, &filePath, &fieldTypes, &sig, &returnType, &paramTypes); err != nil {
			return nil, err
		}

		var newID int64
		switch graph.NodeKind(kind) {
		case graph.NodeKindFile:
			newID, err = b.UpsertFile(name, key)
		case graph.NodeKindClass:
			newID, err = b.UpsertType(key, filePath.String)
		case graph.NodeKindField:
			newID, err = b.UpsertField(key)
			if err == nil {
				err = replayFieldTypes(b, newID, fieldTypes.String)
			}
		case graph.NodeKindMethod:
			newID, err = b.UpsertMethod(key)
			if err == nil {
				var params []string
				if params, err = decodeList(paramTypes.String); err == nil {
					err = b.SetMethodTypes(newID, returnType.String, params)
				}
			}
		default:
			err = fmt.Errorf("unknown node kind %q", kind)
		}
		if err != nil {
			return nil, fmt.Errorf("load node %d: %w", id, err)
		}
		ids[id] = newID
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	edgeRows, err := db.conn.QueryContext(ctx,
		`SELECT id, kind, from_id, to_id, line, created_at, confidence FROM edges ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer edgeRows.Close()

	for edgeRows.Next() {
		var (
			e         graph.Edge
			createdAt int64
		)
		if err := edgeRows.Scan(&e.ID, &e.Kind, &e.FromID, &e.ToID, &e.Line, &createdAt, &e.Confidence); err != nil {
			return nil, err
		}
		e.FromID, e.ToID = ids[e.FromID], ids[e.ToID]
		e.CreatedAt = time.Unix(0, createdAt).UTC()
		if err := b.AddEdge(&e); err != nil {
			return nil, fmt.Errorf("load edge %d: %w", e.ID, err)
		}
	}
	if err := edgeRows.Err(); err != nil {
		return nil, err
	}

	return b.Freeze(), nil
}

func replayFieldTypes(b *graph.Builder, id int64, encoded string) error {
	types, err := decodeList(encoded)
	if err != nil {
		return err
	}
	for _, t := range types {
		if err := b.SetFieldType(id, t); err != nil {
			return err
		}
	}
	return nil
}

// Stats describes the stored snapshot.
type Stats struct {
	Nodes   int64
	Edges   int64
	SavedAt time.Time
}

// GetStats returns database statistics
func (db *DB) GetStats(ctx context.Context) (*Stats, error) {
	var s Stats
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM nodes").Scan(&s.Nodes); err != nil {
		return nil, err
	}
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM edges").Scan(&s.Edges); err != nil {
		return nil, err
	}
	var savedAt string
	err := db.conn.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = 'saved_at'").Scan(&savedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, err
	default:
		if s.SavedAt, err = time.Parse(time.RFC3339Nano, savedAt); err != nil {
			return nil, err
		}
	}
	return &s, nil
}

// ==================== Risk Score Queries ====================

// RiskScore represents the change risk assessment for a method
type RiskScore struct {
	ID            int64  `json:"id"`
	Signature     string `json:"signature"`
	FilePath      string `json:"filePath"`
	DirectCallers int    `json:"directCallers"`
	TotalCallers  int    `json:"totalCallers"`
	RiskLevel     string `json:"riskLevel"`
}

// GetTotalCallerCount returns the number of distinct transitive callers.
// Depth is limited to 50 so that cycles terminate quickly.
func (db *DB) GetTotalCallerCount(ctx context.Context, nodeID int64) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx, `
		WITH RECURSIVE callers(id, depth) AS (
			SELECT from_id, 1 FROM edges WHERE to_id = ? AND kind = 'CALLS'
			UNION
			SELECT e.from_id, c.depth + 1
			FROM edges e
			JOIN callers c ON e.to_id = c.id
			WHERE e.kind = 'CALLS' AND c.depth < 50
		)
		SELECT COUNT(DISTINCT id) FROM callers WHERE id != ?
	`, nodeID, nodeID).Scan(&count)
	return count, err
}

// GetRiskScore assesses a single method by signature, including its
// transitive caller count.
func (db *DB) GetRiskScore(ctx context.Context, signature string) (*RiskScore, error) {
	var r RiskScore
	err := db.conn.QueryRowContext(ctx, `
		SELECT n.id, n.signature, `+declaringFileExpr+`,
		       (SELECT COUNT(DISTINCT from_id) FROM edges WHERE to_id = n.id AND kind = 'CALLS')
		FROM nodes n
		WHERE n.kind = 'Method' AND n.key = ?
	`, signature).Scan(&r.ID, &r.Signature, &r.FilePath, &r.DirectCallers)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, bserrors.NotFoundf("method not found: %s", signature)
	}
	if err != nil {
		return nil, err
	}

	if r.TotalCallers, err = db.GetTotalCallerCount(ctx, r.ID); err != nil {
		return nil, err
	}
	r.RiskLevel = CalculateRiskLevel(r.DirectCallers, r.TotalCallers)
	return &r, nil
}

// GetTopRiskyMethods returns methods with most direct callers (highest risk).
// Only direct callers are counted; recursive counts are too slow for a list.
func (db *DB) GetTopRiskyMethods(ctx context.Context, limit int) ([]*RiskScore, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT n.id, n.signature, `+declaringFileExpr+`,
		       COUNT(DISTINCT e.from_id) AS caller_count
		FROM nodes n
		LEFT JOIN edges e ON e.to_id = n.id AND e.kind = 'CALLS'
		WHERE n.kind = 'Method'
		GROUP BY n.id
		ORDER BY caller_count DESC, n.signature ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*RiskScore
	for rows.Next() {
		var r RiskScore
		if err := rows.Scan(&r.ID, &r.Signature, &r.FilePath, &r.DirectCallers); err != nil {
			return nil, err
		}
		r.TotalCallers = r.DirectCallers
		r.RiskLevel = CalculateRiskLevelFast(r.DirectCallers)
		results = append(results, &r)
	}
	return results, rows.Err()
}

// declaringFileExpr selects the file of the first declaring class of n.
const declaringFileExpr = `COALESCE((
			SELECT c.file_path FROM edges ce JOIN nodes c ON c.id = ce.from_id
			WHERE ce.to_id = n.id AND ce.kind = 'CONTAINS' AND c.file_path IS NOT NULL
			ORDER BY c.file_path LIMIT 1), '')`

// CalculateRiskLevel determines risk level based on caller metrics
func CalculateRiskLevel(directCallers, totalCallers int) string {
	// Direct callers dominate; total impact is secondary
	if directCallers >= 50 || totalCallers >= 200 {
		return "critical"
	}
	if directCallers >= 20 || totalCallers >= 100 {
		return "high"
	}
	if directCallers >= 5 || totalCallers >= 30 {
		return "medium"
	}
	return "low"
}

// CalculateRiskLevelFast determines risk level based on direct callers only (for list view)
func CalculateRiskLevelFast(directCallers int) string {
	return CalculateRiskLevel(directCallers, 0)
}

// Helper functions

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func encodeList(items []string) (any, error) {
	if len(items) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func decodeList(encoded string) ([]string, error) {
	if encoded == "" {
		return nil, nil
	}
	var items []string
	if err := json.Unmarshal([]byte(encoded), &items); err != nil {
		return nil, fmt.Errorf("decode list %q: %w", encoded, err)
	}
	return items, nil
}
