package detection

import (
	"context"
	"log/slog"
	"sort"

	"recurring/internal/core"
)

// Proposal is a pattern the engine believes exists, ready to be reconciled
// against stored patterns.
type Proposal struct {
	core.PatternStats
	Confidence Confidence
}

// Engine runs the whole pipeline for one account: group, detect, score.
type Engine struct {
	grouper  *Grouper
	detector *Detector
}

// NewEngine returns an Engine using sim to compare merchant keys.
// A nil sim uses LevenshteinSimilarity.
func NewEngine(sim Similarity) *Engine {
	return &Engine{
		grouper:  NewGrouper(sim, DefaultSimilarityThreshold),
		detector: NewDetector(),
	}
}

// Propose returns the patterns found in txs that reach MinConfidence, ordered by
// normalized key. Malformed transactions are logged and skipped.
func (e *Engine) Propose(ctx context.Context, txs []core.Transaction, daysBack int) []Proposal {
	valid := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if err := tx.Validate(); err != nil {
			slog.WarnContext(ctx, "Skipping malformed transaction",
				"transaction_id", tx.ID,
				"account_id", tx.AccountID,
				"error", err)
			continue
		}
		valid = append(valid, tx)
	}

	var out []Proposal
	for _, g := range e.grouper.Group(valid) {
		det, ok := e.detector.Detect(g.Transactions)
		if !ok {
			continue
		}
		conf := Score(det, daysBack)
		if !conf.Passes() {
			slog.DebugContext(ctx, "Pattern below confidence threshold",
				"normalized_key", g.Key,
				"frequency", det.Rule.Frequency,
				"confidence", conf.Score.String())
			continue
		}
		out = append(out, newProposal(g, det, conf))
	}

	sort.Slice(out, func(i, j int) bool { return out[i].NormalizedKey < out[j].NormalizedKey })
	return out
}

func newProposal(g Group, det Detection, conf Confidence) Proposal {
	latest := det.Latest()
	variants := make([]string, len(g.Variants))
	copy(variants, g.Variants)
	return Proposal{
		PatternStats: core.PatternStats{
			NormalizedKey:       g.Key,
			Description:         latest.Description,
			MerchantName:        g.MerchantName(),
			Amount:              latest.Amount.Decimal,
			AverageAmount:       det.AverageAmount.Round(core.CostPrecision),
			Frequency:           det.Rule.Frequency,
			NextExpectedDate:    det.Rule.NextDate(latest.Date),
			LastOccurrenceDate:  latest.Date,
			OccurrenceCount:     det.Occurrences(),
			ConfidenceScore:     conf.Score,
			SimilarDescriptions: variants,
			TransactionIDs:      det.TransactionIDs(),
		},
		Confidence: conf,
	}
}
