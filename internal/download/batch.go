package download

import (
	"context"
	"errors"
	"sync"

	"yt-allinone/internal/model"
)

type BatchResult struct {
	Task model.Task `json:"task"`
	Err  error      `json:"-"`
}

func (r BatchResult) Cancelled() bool { return errors.Is(r.Err, ErrCancelled) }

// Batch feeds tasks to a Manager one after another and reports the
// aggregate percentage as overall events. Cancelling the current task moves
// on to the next one; cancelling ctx stops the batch.
type Batch struct {
	Manager   *Manager
	OnOverall Observer
	// OnStart and OnFinish bracket each task that is handed to the manager.
	OnStart  func(index int, task model.Task)
	OnFinish func(index int, result BatchResult)
}

func OverallPercent(completed, total int, current float64) float64 {
	if total <= 0 {
		return 0
	}
	return model.ClampPercent((float64(completed) + model.ClampPercent(current)/100) * 100 / float64(total))
}

func (b *Batch) Run(ctx context.Context, tasks []model.Task) []BatchResult {
	var (
		mu        sync.Mutex
		completed int
		current   float64
	)
	total := len(tasks)

	remove := b.Manager.OnProgress(func(ev model.Event) {
		if ev.Kind != model.EventProgress || ev.Progress == nil {
			return
		}
		mu.Lock()
		// separate stream files restart at zero; keep the item's best
		if ev.Progress.Percent > current {
			current = ev.Progress.Percent
		}
		pct := OverallPercent(completed, total, current)
		mu.Unlock()
		b.overall(pct)
	})
	defer remove()

	results := make([]BatchResult, 0, total)
	for i, task := range tasks {
		if ctx.Err() != nil {
			results = append(results, BatchResult{Task: task, Err: ErrCancelled})
			continue
		}
		if b.OnStart != nil {
			b.OnStart(i, task)
		}
		res := BatchResult{Task: task, Err: b.Manager.Start(ctx, task)}
		results = append(results, res)
		if b.OnFinish != nil {
			b.OnFinish(i, res)
		}

		mu.Lock()
		completed++
		current = 0
		pct := OverallPercent(completed, total, 0)
		mu.Unlock()
		b.overall(pct)
	}
	return results
}

func (b *Batch) overall(pct float64) {
	if b.OnOverall != nil {
		b.OnOverall(model.OverallEvent(pct))
	}
}
