package services

import (
	"time"

	"recurring/internal/core"
	"recurring/internal/detection"
)

// PlanReconciliation decides how the proposals of one detection run change the
// stored patterns of an account.
//
// A proposal matches the stored pattern with the same normalized key or, failing that,
// a stored pattern whose key is one of the proposal's merged variants. A matched
// pattern keeps its stored key and display name, takes the new statistics and is
// reactivated. An unmatched proposal creates a pattern. An active stored pattern that
// no proposal matched is deactivated. The user overlay is carried through untouched.
func PlanReconciliation(accountID, userID string, existing []core.RecurringPattern, proposals []detection.Proposal, now time.Time, newID func() string) core.Reconciliation {
	rec := core.Reconciliation{
		AccountID: accountID,
		Result:    core.DetectionResult{AccountID: accountID},
	}

	byKey := make(map[string]int, len(existing))
	for i, p := range existing {
		byKey[p.NormalizedKey] = i
	}

	// Exact keys are claimed first so a variant never steals another proposal's row.
	matched := make([]int, len(proposals))
	claimed := make(map[int]bool, len(existing))
	for pi, prop := range proposals {
		matched[pi] = -1
		if i, ok := byKey[prop.NormalizedKey]; ok {
			matched[pi] = i
			claimed[i] = true
		}
	}
	for pi, prop := range proposals {
		if matched[pi] >= 0 {
			continue
		}
		for _, variant := range prop.SimilarDescriptions {
			if i, ok := byKey[variant]; ok && !claimed[i] {
				matched[pi] = i
				claimed[i] = true
				break
			}
		}
	}

	for pi, prop := range proposals {
		if i := matched[pi]; i >= 0 {
			stored := existing[i]
			key, name := stored.NormalizedKey, stored.MerchantName
			stored.PatternStats = prop.PatternStats
			stored.NormalizedKey = key
			if name != "" {
				stored.MerchantName = name
			}
			stored.UserID = userID
			stored.IsActive = true
			stored.UpdatedAt = now
			rec.Update = append(rec.Update, stored)
			rec.Result.PatternsUpdated++
			continue
		}

		rec.Create = append(rec.Create, core.RecurringPattern{
			ID:           newID(),
			AccountID:    accountID,
			UserID:       userID,
			PatternStats: prop.PatternStats,
			IsActive:     true,
			DetectedAt:   now,
			UpdatedAt:    now,
		})
		rec.Result.PatternsCreated++
	}

	for i, p := range existing {
		if claimed[i] || !p.IsActive {
			continue
		}
		rec.Deactivate = append(rec.Deactivate, p.ID)
		rec.Result.PatternsDeactivated++
	}

	return rec
}
