package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_one_open_round_per_bureau",
			SQL: `SELECT client_id, bureau, COUNT(*) FROM dispute_rounds
                  WHERE status IN ('drafted','sent','awaiting_response')
                  GROUP BY client_id, bureau HAVING COUNT(*) > 1`,
		},
		{
			Name: "O2_round_size_cap",
			SQL: `SELECT round_id, COUNT(*) FROM dispute_items
                  GROUP BY round_id HAVING COUNT(*) > 5`,
		},
		{
			Name: "O3_contiguous_round_numbers",
			SQL: `WITH seqs AS (
                      SELECT client_id, bureau, round_number,
                             LAG(round_number) OVER (PARTITION BY client_id, bureau ORDER BY round_number) AS prev
                      FROM dispute_rounds)
                  SELECT * FROM seqs
                  WHERE (prev IS NULL AND round_number <> 1)
                     OR (prev IS NOT NULL AND round_number <> prev + 1)`,
		},
		{
			Name: "O4_item_ranks_dense",
			SQL: `WITH ranked AS (
                      SELECT round_id, rank,
                             ROW_NUMBER() OVER (PARTITION BY round_id ORDER BY rank) AS expected
                      FROM dispute_items)
                  SELECT * FROM ranked WHERE rank <> expected`,
		},
		{
			Name: "O5_no_duplicate_active_tradeline",
			SQL: `SELECT i.bureau, i.tradeline_id, COUNT(*) FROM dispute_items i
                  JOIN dispute_rounds r ON r.id = i.round_id
                  WHERE r.status IN ('drafted','sent','awaiting_response')
                    AND i.tradeline_id IS NOT NULL
                  GROUP BY i.bureau, i.tradeline_id HAVING COUNT(*) > 1`,
		},
		{
			Name: "O6_resolved_findings_not_redisputed",
			SQL: `SELECT i.id FROM dispute_items i
                  JOIN dispute_rounds r ON r.id = i.round_id
                  JOIN findings f ON f.id = i.finding_id
                  WHERE r.status IN ('drafted','sent','awaiting_response')
                    AND f.resolved`,
		},
		{
			Name: "O7_open_sent_has_deadline",
			SQL: `SELECT id, status FROM dispute_rounds
                  WHERE status IN ('sent','awaiting_response') AND respond_by IS NULL`,
		},
		{
			Name: "O8_terminal_rounds_closed",
			SQL: `SELECT id, status FROM dispute_rounds
                  WHERE status IN ('resolved','escalated') AND closed_at IS NULL`,
		},
		{
			Name: "O9_outcomes_only_on_closed_rounds",
			SQL: `SELECT i.id FROM dispute_items i
                  JOIN dispute_rounds r ON r.id = i.round_id
                  WHERE i.outcome IS NOT NULL AND r.status NOT IN ('resolved','escalated')`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and a sample
// row) or an empty name if every invariant holds.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		if rows.Next() {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}
