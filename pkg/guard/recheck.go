package guard

import (
	"context"
	"fmt"
	"sync"

	"candela-hq/guardian/pkg/audit"
	"candela-hq/guardian/pkg/rules"
	"candela-hq/guardian/pkg/ruleset"
)

// recheck carries a sync_light verdict to the background semantic pass.
// The job is queued before the original entry is appended, so it waits on
// ready until the caller has recorded and cached the fast verdict.
type recheck struct {
	key  string
	text string
	rs   *ruleset.Ruleset

	once  sync.Once
	ready chan struct{}
	fast  *Verdict
	entry *audit.Entry
}

func newRecheck(key, text string, rs *ruleset.Ruleset) *recheck {
	return &recheck{key: key, text: text, rs: rs, ready: make(chan struct{})}
}

// release hands the recorded verdict and entry to the waiting job. A nil
// entry cancels the recheck. Only the first call has an effect.
func (p *recheck) release(fast *Verdict, entry *audit.Entry) {
	if p == nil {
		return
	}
	p.once.Do(func() {
		p.fast = fast
		p.entry = entry
		close(p.ready)
	})
}

func (r *Runtime) recheck(ctx context.Context, p *recheck) error {
	<-p.ready
	if p.entry == nil {
		return nil
	}

	start := r.now()
	semantic := rules.EvaluateSemantic(ctx, p.text, p.rs, r.matcher)
	elapsed := r.now().Sub(start)

	if !rules.HasViolation(semantic) {
		r.metrics.ObserveRecheck("clean", elapsed)
		return nil
	}

	notes := make([]string, 0, len(p.fast.Notes)+1)
	for _, n := range p.fast.Notes {
		if n != NoteRecheckPending {
			notes = append(notes, n)
		}
	}
	notes = append(notes, NoteCorrected)
	corrected := newVerdict(rules.Merge(p.fast.Findings, semantic), p.rs, r.cfg.Mode, notes, p.fast.WallTimeMS+millis(elapsed))

	// Later callers must see the violation even if the correction cannot
	// be written.
	r.cache.Overwrite(p.key, corrected)

	entry, err := p.entry.Correction(corrected)
	if err != nil {
		r.metrics.ObserveRecheck("error", elapsed)
		return fmt.Errorf("build correction: %w", err)
	}
	line, err := r.log.Append(ctx, entry)
	if err != nil {
		r.metrics.ObserveRecheck("error", elapsed)
		return fmt.Errorf("record correction of %s: %w", p.entry.ID, err)
	}

	r.metrics.ObserveRecheck("corrected", elapsed)
	r.logger.Warn("semantic recheck corrected a passing verdict",
		"entry_id", p.entry.ID,
		"correction_id", entry.ID,
		"line", line,
		"violations", corrected.Violations,
	)
	return nil
}
