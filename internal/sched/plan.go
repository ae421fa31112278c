// Package sched plans and executes parallel per-page extraction. Planning
// applies feature-safety downgrades up front; execution runs a fixed-size
// worker pool with an explicit join and a deterministic merge, so
// parallelism is never observable in output ordering.
package sched

import (
	"strconv"

	"github.com/jackzampolin/bindery/internal/parser"
	"github.com/jackzampolin/bindery/internal/report"
)

// Features are the flags whose result caches are unsafe for concurrent
// population across workers.
type Features struct {
	OCR      bool
	Captions bool
}

// Plan is the resolved execution plan for one run.
type Plan struct {
	EffectiveWorkers int      `json:"effective_workers"`
	OCR              bool     `json:"ocr"`
	Captions         bool     `json:"captions"`
	DisabledFeatures []string `json:"disabled_features,omitempty"`
}

// PlanExecution applies the downgrade rules in order:
//
//  1. A backend without parallel extraction support forces one worker.
//  2. OCR/captioning with more than one worker disables both features;
//     their caches cannot be populated concurrently.
//  3. Fewer selected pages than requested workers shrinks the pool.
//  4. Otherwise the requested count is honored.
//
// None of these rules raise errors; each downgrade is recorded on the run
// report as a structured decision.
func PlanExecution(requested int, caps parser.Capabilities, features Features, pageCount int, rep *report.Run) Plan {
	if requested < 1 {
		requested = 1
	}
	plan := Plan{
		EffectiveWorkers: requested,
		OCR:              features.OCR,
		Captions:         features.Captions,
	}

	if !caps.SupportsParallelExtraction && plan.EffectiveWorkers > 1 {
		rep.RecordDowngrade(report.Downgrade{
			Reason:   "backend does not support parallel page extraction",
			Field:    "workers",
			Original: strconv.Itoa(plan.EffectiveWorkers),
			New:      "1",
		})
		plan.EffectiveWorkers = 1
	}

	if (plan.OCR || plan.Captions) && plan.EffectiveWorkers > 1 {
		if plan.OCR {
			rep.RecordDowngrade(report.Downgrade{
				Reason:   "OCR cache is unsafe under parallel workers",
				Field:    "ocr",
				Original: "on",
				New:      "off",
			})
			plan.OCR = false
			plan.DisabledFeatures = append(plan.DisabledFeatures, "ocr")
		}
		if plan.Captions {
			rep.RecordDowngrade(report.Downgrade{
				Reason:   "caption cache is unsafe under parallel workers",
				Field:    "captions",
				Original: "on",
				New:      "off",
			})
			plan.Captions = false
			plan.DisabledFeatures = append(plan.DisabledFeatures, "captions")
		}
	}

	if pageCount > 0 && pageCount < plan.EffectiveWorkers {
		rep.RecordDowngrade(report.Downgrade{
			Reason:   "fewer selected pages than requested workers",
			Field:    "workers",
			Original: strconv.Itoa(plan.EffectiveWorkers),
			New:      strconv.Itoa(pageCount),
		})
		plan.EffectiveWorkers = pageCount
	}

	return plan
}
