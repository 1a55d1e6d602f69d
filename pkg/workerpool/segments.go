package workerpool

import (
	"context"

	"github.com/jon-wei/druid-sub000/pkg/resource/domain"
	"github.com/jon-wei/druid-sub000/pkg/segment"
)

// ReadSegments materializes the cursors of every segment under spec, one
// task per segment, and returns the projected rows in segment order. A task
// stops between cursors once ctx is done.
func ReadSegments(ctx context.Context, p *Pool, segments []segment.StorageAdapter, spec segment.CursorSpec, columns []string) ([][]domain.Row, error) {
	out := make([][]domain.Row, len(segments))
	tasks := make([]Task, len(segments))
	for i, seg := range segments {
		tasks[i] = func(ctx context.Context) error {
			for cursor := range seg.MakeCursors(spec) {
				if err := ctx.Err(); err != nil {
					return err
				}
				out[i] = append(out[i], segment.ReadRows(cursor, columns)...)
			}
			return nil
		}
	}
	if err := p.Run(ctx, tasks); err != nil {
		return nil, err
	}
	return out, nil
}
