package validation

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/scipiia/effvalid/internal/storage"
	"github.com/shopspring/decimal"
)

// ErrMissingWorkOrder marks a dangling work order reference. Rules that need the
// work order are skipped for the run; the remaining rules still execute.
var ErrMissingWorkOrder = errors.New("work order not found")

// Candidate is a flag a rule wants raised. It carries its own target job card id
// because the split and qty rules flag cohort members other than the card under
// evaluation.
type Candidate struct {
	JobCardID int64
	FlagType  storage.FlagType
	Details   string
}

// Rule is a pure evaluation unit. Evaluate does no I/O; everything it needs
// beyond the card itself comes from the RuleContext snapshot.
type Rule interface {
	Name() string
	Evaluate(card *storage.JobCard, rctx *RuleContext) ([]Candidate, error)
}

// AWCRule flags job cards logged with free-text activity instead of a
// registered activity code. Purely structural, no cohort lookup.
type AWCRule struct{}

func (AWCRule) Name() string { return "awc" }

func (AWCRule) Evaluate(card *storage.JobCard, _ *RuleContext) ([]Candidate, error) {
	if card.ActivityCodeID != nil {
		return nil, nil
	}

	details := fmt.Sprintf("activity without code: %q reported with %s hours and no registered activity code",
		card.ActivityDesc, card.ActualHours.String())

	return []Candidate{{JobCardID: card.ID, FlagType: storage.FlagAWC, Details: details}}, nil
}

// MSDWindowRule checks that the entry date falls inside the work order's
// scheduled month, widened by the configured grace days on both sides.
type MSDWindowRule struct{}

func (MSDWindowRule) Name() string { return "msd_window" }

func (MSDWindowRule) Evaluate(card *storage.JobCard, rctx *RuleContext) ([]Candidate, error) {
	if rctx.WorkOrder == nil {
		return nil, ErrMissingWorkOrder
	}

	monthStart, err := parseMSDMonth(rctx.WorkOrder.MSDMonth)
	if err != nil {
		return nil, fmt.Errorf("msd_month %q: %w", rctx.WorkOrder.MSDMonth, err)
	}

	windowStart := monthStart.AddDate(0, 0, -rctx.Cfg.MSDGraceDays)
	windowEnd := monthStart.AddDate(0, 1, -1).AddDate(0, 0, rctx.Cfg.MSDGraceDays)

	entry := dateOnly(card.EntryDate)
	if !entry.Before(windowStart) && !entry.After(windowEnd) {
		return nil, nil
	}

	details := fmt.Sprintf("entry date %s is outside MSD window %s (%s to %s) of work order %s",
		entry.Format("2006-01-02"),
		rctx.WorkOrder.MSDMonth,
		windowStart.Format("2006-01-02"),
		windowEnd.Format("2006-01-02"),
		rctx.WorkOrder.WONumber,
	)

	return []Candidate{{JobCardID: card.ID, FlagType: storage.FlagMSDWindow, Details: details}}, nil
}

// DuplicationRule flags the evaluated card when its exact-match cohort (same
// employee, machine, work order, activity code, entry date) is non-empty. The
// exact-match cohort is a filter over the day cohort, never a second query, so
// duplication and split results always come from the same snapshot. Symmetry
// comes from the engine cross-triggering the siblings, not from this rule.
type DuplicationRule struct{}

func (DuplicationRule) Name() string { return "duplication" }

func (DuplicationRule) Evaluate(card *storage.JobCard, rctx *RuleContext) ([]Candidate, error) {
	var dup []int64
	for _, jc := range rctx.DayCohort {
		if jc.EmployeeID == card.EmployeeID &&
			jc.MachineID == card.MachineID &&
			sameActivityCode(jc.ActivityCodeID, card.ActivityCodeID) {
			dup = append(dup, jc.ID)
		}
	}
	if len(dup) == 0 {
		return nil, nil
	}

	sortIDs(dup)
	details := fmt.Sprintf("found %d job card(s) with same employee/machine/work order/activity on %s: %s",
		len(dup), dateOnly(card.EntryDate).Format("2006-01-02"), joinIDs(dup))

	return []Candidate{{JobCardID: card.ID, FlagType: storage.FlagDuplication, Details: details}}, nil
}

// QtyMismatchRule raises QTY_MISMATCH when a cohort member's qty alone exceeds
// the planned quantity, and when the day cohort's total exceeds planned qty by
// strictly more than the tolerance. Exactly at the tolerance boundary no flag
// is raised. Both checks cover every cohort member, and a member over plan
// gets both evidence parts in one candidate, so the details per card are the
// same no matter which member's evaluation produced them.
type QtyMismatchRule struct{}

func (QtyMismatchRule) Name() string { return "qty_mismatch" }

func (QtyMismatchRule) Evaluate(card *storage.JobCard, rctx *RuleContext) ([]Candidate, error) {
	if rctx.WorkOrder == nil {
		return nil, ErrMissingWorkOrder
	}

	planned := rctx.WorkOrder.PlannedQty

	cohort := make([]*storage.JobCard, 0, len(rctx.DayCohort)+1)
	cohort = append(cohort, card)
	cohort = append(cohort, rctx.DayCohort...)
	sort.Slice(cohort, func(i, j int) bool { return cohort[i].ID < cohort[j].ID })

	total := decimal.Zero
	ids := make([]int64, 0, len(cohort))
	for _, jc := range cohort {
		total = total.Add(jc.Qty)
		ids = append(ids, jc.ID)
	}

	var cohortDetails string
	limit := planned.Mul(decimal.NewFromInt(1).Add(rctx.Cfg.QtyTolerance))
	cohortBreach := total.GreaterThan(limit)
	if cohortBreach {
		cohortDetails = fmt.Sprintf("total qty %s for work order %s on %s exceeds planned qty %s by more than %s%% (cards %s)",
			total.String(),
			rctx.WorkOrder.WONumber,
			dateOnly(card.EntryDate).Format("2006-01-02"),
			planned.String(),
			rctx.Cfg.QtyTolerance.Mul(decimal.NewFromInt(100)).String(),
			joinIDs(ids),
		)
	}

	var out []Candidate
	for _, jc := range cohort {
		var parts []string
		if jc.Qty.GreaterThan(planned) {
			parts = append(parts, fmt.Sprintf("job card qty %s exceeds planned qty %s of work order %s",
				jc.Qty.String(), planned.String(), rctx.WorkOrder.WONumber))
		}
		if cohortBreach {
			parts = append(parts, cohortDetails)
		}
		if len(parts) > 0 {
			out = append(out, Candidate{
				JobCardID: jc.ID,
				FlagType:  storage.FlagQtyMismatch,
				Details:   strings.Join(parts, "; "),
			})
		}
	}

	return out, nil
}

// SplitCandidateRule detects a planned quantity divided across multiple
// employees on the same date where every contribution is under the per-head
// fraction of the plan. Every member of the day cohort is flagged, each with the
// full sibling set as evidence.
type SplitCandidateRule struct{}

func (SplitCandidateRule) Name() string { return "split_candidate" }

func (SplitCandidateRule) Evaluate(card *storage.JobCard, rctx *RuleContext) ([]Candidate, error) {
	if rctx.WorkOrder == nil {
		return nil, ErrMissingWorkOrder
	}

	cohort := make([]*storage.JobCard, 0, len(rctx.DayCohort)+1)
	cohort = append(cohort, card)
	cohort = append(cohort, rctx.DayCohort...)

	if len(cohort) < rctx.Cfg.SplitMinCohort {
		return nil, nil
	}

	threshold := rctx.WorkOrder.PlannedQty.Mul(rctx.Cfg.SplitHeadFraction)
	ids := make([]int64, 0, len(cohort))
	for _, jc := range cohort {
		if !jc.Qty.LessThan(threshold) {
			return nil, nil
		}
		ids = append(ids, jc.ID)
	}

	sortIDs(ids)
	details := fmt.Sprintf("planned qty %s of work order %s reported across %d job cards on %s, each under %s%% of plan (cards %s)",
		rctx.WorkOrder.PlannedQty.String(),
		rctx.WorkOrder.WONumber,
		len(ids),
		dateOnly(card.EntryDate).Format("2006-01-02"),
		rctx.Cfg.SplitHeadFraction.Mul(decimal.NewFromInt(100)).String(),
		joinIDs(ids),
	)

	out := make([]Candidate, 0, len(ids))
	for _, id := range ids {
		out = append(out, Candidate{JobCardID: id, FlagType: storage.FlagSplitCandidate, Details: details})
	}

	return out, nil
}

func parseMSDMonth(s string) (time.Time, error) {
	return time.Parse("2006-01", s)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func sameActivityCode(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func sortIDs(ids []int64) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ", ")
}
