package artifacts

import (
	"context"
	"errors"

	"github.com/ShayCichocki/relay/pkg/models"
)

// Tee writes every document to all of its writers. The location reported
// is the first writer's; errors from all writers are joined.
type Tee []Writer

// WriteTask implements Writer.
func (t Tee) WriteTask(ctx context.Context, task *models.Task) (string, error) {
	return t.each(func(w Writer) (string, error) { return w.WriteTask(ctx, task) })
}

// WriteResult implements Writer.
func (t Tee) WriteResult(ctx context.Context, result *models.TaskResult) (string, error) {
	return t.each(func(w Writer) (string, error) { return w.WriteResult(ctx, result) })
}

func (t Tee) each(fn func(Writer) (string, error)) (string, error) {
	var (
		first string
		errs  []error
	)
	for i, w := range t {
		loc, err := fn(w)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if i == 0 {
			first = loc
		}
	}
	return first, errors.Join(errs...)
}

var _ Writer = Tee(nil)
