package validation

import (
	"context"
	"fmt"

	"github.com/scipiia/effvalid/internal/storage"
	"golang.org/x/sync/errgroup"
)

// RuleContext is the read-only snapshot a rule sees beyond the card itself.
// WorkOrder is nil when the reference is dangling. DayCohort holds the other
// job cards sharing the work order and entry date; the exact-match cohort used
// by the duplication rule is a filter over it, so both always come from the
// same read.
type RuleContext struct {
	WorkOrder *storage.WorkOrder
	DayCohort []*storage.JobCard
	Cfg       Config
}

// forSibling derives the context a cohort sibling would see from the same
// snapshot: the evaluated card joins the sibling's day cohort and the sibling
// itself leaves it.
func (rctx *RuleContext) forSibling(evaluated, sibling *storage.JobCard) *RuleContext {
	cohort := make([]*storage.JobCard, 0, len(rctx.DayCohort))
	cohort = append(cohort, evaluated)
	for _, jc := range rctx.DayCohort {
		if jc.ID != sibling.ID {
			cohort = append(cohort, jc)
		}
	}

	return &RuleContext{WorkOrder: rctx.WorkOrder, DayCohort: cohort, Cfg: rctx.Cfg}
}

func (e *Engine) buildContext(ctx context.Context, store Storage, card *storage.JobCard) (*RuleContext, []*storage.ValidationFlag, error) {
	const op = "service.validation.buildContext"

	var (
		workOrder *storage.WorkOrder
		cohort    []*storage.JobCard
		existing  []*storage.ValidationFlag
	)

	g, gCtx := errgroup.WithContext(ctx)
	// limit 1: store may be bound to a sql.Tx, which cannot serve concurrent
	// queries
	g.SetLimit(1)
	g.Go(func() error {
		var err error
		workOrder, err = store.GetWorkOrder(gCtx, card.WorkOrderID)
		if err != nil {
			return fmt.Errorf("work order: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		cohort, err = store.ListJobCards(gCtx, storage.JobCardFilter{
			WorkOrderID: card.WorkOrderID,
			EntryDate:   card.EntryDate,
		})
		if err != nil {
			return fmt.Errorf("day cohort: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		existing, err = store.GetUnresolvedFlags(gCtx, card.ID)
		if err != nil {
			return fmt.Errorf("unresolved flags: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	// the listing may or may not already contain the card under evaluation
	siblings := make([]*storage.JobCard, 0, len(cohort))
	for _, jc := range cohort {
		if jc.ID != card.ID {
			siblings = append(siblings, jc)
		}
	}

	return &RuleContext{WorkOrder: workOrder, DayCohort: siblings, Cfg: e.cfg}, existing, nil
}
