// Command tune grid-searches the Elo K-factors stored in the database.
//
// For every candidate K combination it updates processed.elo_params,
// asks the database to rebuild the ratings, refreshes the derived
// materialized views, and scores the rebuilt ratings by log-loss over a
// validation season. The five best combinations are reported at the end.
//
// The rebuild runs inside Postgres, so this command talks to the pool
// directly instead of going through the storage abstraction.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// kSet is one candidate assignment of K-factors per tournament level.
type kSet struct {
	G int // Grand Slams
	F int // Tour Finals
	M int // Masters
	A int // ATP 500
	B int // ATP 250
}

func (k kSet) String() string {
	return fmt.Sprintf("G=%d F=%d M=%d A=%d B=%d", k.G, k.F, k.M, k.A, k.B)
}

type result struct {
	ks      kSet
	logloss float64
	rows    int
}

func main() {
	var (
		dsn      string
		fromDate string
		toDate   string
	)
	flag.StringVar(&dsn, "dsn", "", "Postgres DSN (falls back to env PG_URL)")
	flag.StringVar(&fromDate, "from", "2023-01-01", "validation window start (inclusive)")
	flag.StringVar(&toDate, "to", "2024-01-01", "validation window end (exclusive)")
	flag.Parse()

	if dsn == "" {
		dsn = os.Getenv("PG_URL")
	}
	if dsn == "" {
		fmt.Fprintln(os.Stderr, "set -dsn or PG_URL")
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer pool.Close()

	// Small, sensible grid.
	var grid []kSet
	for _, g := range []int{14, 16} {
		for _, f := range []int{18} {
			for _, m := range []int{18, 20, 22} {
				for _, a := range []int{20, 22, 24} {
					for _, b := range []int{22, 24, 26} {
						grid = append(grid, kSet{g, f, m, a, b})
					}
				}
			}
		}
	}

	results := make([]result, 0, len(grid))
	for _, ks := range grid {
		log.Printf("testing K: %s", ks)
		start := time.Now()

		if err := setKs(ctx, pool, ks); err != nil {
			log.Fatalf("set params: %v", err)
		}
		if err := rebuild(ctx, pool); err != nil {
			log.Fatalf("rebuild: %v", err)
		}

		ll, n, err := validate(ctx, pool, fromDate, toDate)
		if err != nil {
			log.Fatalf("validate: %v", err)
		}
		log.Printf("  logloss = %.5f (rows=%d, %s)", ll, n, time.Since(start).Truncate(time.Second))
		results = append(results, result{ks: ks, logloss: ll, rows: n})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].logloss < results[j].logloss })

	fmt.Printf("\nBest K by %s..%s logloss:\n", fromDate, toDate)
	for i, r := range results {
		if i == 5 {
			break
		}
		fmt.Printf("K={%s}  logloss=%.5f\n", r.ks, r.logloss)
	}
}

func setKs(ctx context.Context, pool *pgxpool.Pool, ks kSet) error {
	_, err := pool.Exec(ctx, `
		UPDATE processed.elo_params
		SET k_g=$1, k_f=$2, k_m=$3, k_a=$4, k_b=$5
		WHERE id=1
	`, ks.G, ks.F, ks.M, ks.A, ks.B)
	return err
}

func rebuild(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range []string{
		"SELECT processed.rebuild_elo();",
		"REFRESH MATERIALIZED VIEW processed.player_history;",
		"REFRESH MATERIALIZED VIEW processed.match_training;",
	} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("%s: %w", stmt, err)
		}
	}
	return nil
}

// validate scores the current ratings over the validation window:
// mean log-loss of the Elo logistic probability against the outcome.
func validate(ctx context.Context, pool *pgxpool.Pool, from, to string) (float64, int, error) {
	rows, err := pool.Query(ctx, `
		SELECT y, elo_diff
		FROM processed.match_training
		WHERE tourney_date >= $1 AND tourney_date < $2
		  AND elo_diff IS NOT NULL
	`, from, to)
	if err != nil {
		return 0, 0, err
	}
	defer rows.Close()

	var sum float64
	var n int
	for rows.Next() {
		var y int
		var diff float64
		if err := rows.Scan(&y, &diff); err != nil {
			return 0, 0, err
		}
		sum += logloss(y, eloProb(diff))
		n++
	}
	if err := rows.Err(); err != nil {
		return 0, 0, err
	}
	if n == 0 {
		return 0, 0, fmt.Errorf("no validation rows in [%s, %s)", from, to)
	}
	return sum / float64(n), n, nil
}

// eloProb is the Elo logistic: the win probability implied by a rating gap.
func eloProb(diff float64) float64 {
	return 1.0 / (1.0 + math.Pow(10, -diff/400.0))
}

func logloss(y int, p float64) float64 {
	const eps = 1e-15
	p = math.Min(math.Max(p, eps), 1-eps)
	if y == 1 {
		return -math.Log(p)
	}
	return -math.Log(1 - p)
}
