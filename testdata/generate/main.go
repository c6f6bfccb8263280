// Command generate produces demo data for exercising the engine end to end:
// payouts.json holds create-payout request bodies to POST through the API,
// and statement.csv is the bank statement a later upload reconciles them
// against.
//
// The statement references assume a fresh database: the sandbox connector
// hands out SBX-<country>-NNNNNN references in send order, and payouts are
// sent in priority-then-FIFO order, so the refs here line up with the first
// processing run after seeding.
package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
)

type payoutRequest struct {
	ExternalID     string  `json:"external_id"`
	OriginModule   string  `json:"origin_module"`
	OriginEntityID string  `json:"origin_entity_id"`
	Currency       string  `json:"currency"`
	Amount         float64 `json:"amount"`
	Method         string  `json:"method"`
	DestinationID  string  `json:"destination_id"`
}

func main() {
	rng := rand.New(rand.NewSource(42))
	baseDir := findTestdataDir()

	methods := []string{"instant", "priority", "batch"}
	merchants := make([]string, 10)
	for i := range merchants {
		merchants[i] = fmt.Sprintf("M%03d", i+1)
	}

	const payoutCount = 40
	payouts := make([]payoutRequest, 0, payoutCount)
	for i := 1; i <= payoutCount; i++ {
		amount := 5 + rng.Float64()*495
		amount = math.Round(amount*100) / 100
		payouts = append(payouts, payoutRequest{
			ExternalID:     fmt.Sprintf("demo-payout-%03d", i),
			OriginModule:   "marketplace",
			OriginEntityID: merchants[rng.Intn(len(merchants))],
			Currency:       "USD",
			Amount:         amount,
			Method:         methods[rng.Intn(len(methods))],
			DestinationID:  "ta-usd-1",
		})
	}

	writeJSONFile(filepath.Join(baseDir, "payouts.json"), payouts)
	fmt.Printf("Generated %d payout requests -> payouts.json\n", len(payouts))

	generateStatementCSV(rng, payouts, baseDir)
	fmt.Println("Demo data generation complete.")
}

// generateStatementCSV writes one statement line per sent payout, with a
// spread of outcomes: most match exactly, a few report a slightly different
// amount (within fuzzy tolerance when the reference is lost, outside it
// when kept), some are missing, and a couple are orphans the engine must
// escalate.
func generateStatementCSV(rng *rand.Rand, payouts []payoutRequest, baseDir string) {
	// Sandbox refs are assigned in send order: all instant payouts first,
	// then priority, then batch, FIFO within each tier.
	ordered := make([]payoutRequest, 0, len(payouts))
	for _, tier := range []string{"instant", "priority", "batch"} {
		for _, p := range payouts {
			if p.Method == tier {
				ordered = append(ordered, p)
			}
		}
	}

	filePath := filepath.Join(baseDir, "statement.csv")
	f, err := os.Create(filePath)
	if err != nil {
		panic(err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	w.Write([]string{"reference", "amount", "currency", "statement_date"})

	const statementDate = "2026-08-31"
	count := 0

	for i, p := range ordered {
		ref := fmt.Sprintf("SBX-US-%06d", i+1)
		amount := p.Amount
		roll := rng.Float64()

		switch {
		case roll > 0.95:
			// Missing from the statement entirely.
			continue
		case roll > 0.90:
			// Amount mismatch on a kept reference: review material.
			amount = math.Round(amount*(1.03+rng.Float64()*0.02)*100) / 100
		case roll > 0.85:
			// Bank substituted its own reference; amount drifts a few
			// basis points, so the fuzzy pass has to find it.
			ref = fmt.Sprintf("WIRE-%06d", i+1)
			amount = math.Round(amount*(1+(rng.Float64()-0.5)*0.004)*100) / 100
		}

		w.Write([]string{ref, fmt.Sprintf("%.2f", amount), "USD", statementDate})
		count++
	}

	// Orphans: references no instruction ever produced.
	for i := 1; i <= 2; i++ {
		w.Write([]string{
			fmt.Sprintf("GHOST-%03d", i),
			fmt.Sprintf("%.2f", 10+rng.Float64()*90),
			"USD", statementDate,
		})
		count++
	}

	fmt.Printf("Generated %d statement lines -> statement.csv\n", count)
}

func writeJSONFile(path string, v any) {
	f, err := os.Create(path)
	if err != nil {
		panic(err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		panic(err)
	}
}

func findTestdataDir() string {
	// Look for the testdata directory relative to common locations.
	candidates := []string{
		"testdata",
		"./testdata",
		"../../testdata",
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && info.IsDir() {
			return c
		}
	}
	// Fallback.
	return "testdata"
}
