package river

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/riverqueue/river"
)

// deadLetterOffice files refused messages onto the dead-letter queue. The
// queue is deliberately absent from the client's queue configuration, so the
// inserted jobs remain available but unworked until someone looks at them.
type deadLetterOffice struct {
	client *Client
	logger *slog.Logger
}

// refuse captures a message that its consumer will never be able to process
// and acknowledges the original job by cancelling it. The returned error must
// be propagated as the Work result: river.JobCancel marks the job cancelled
// rather than eligible for retry.
func (d *deadLetterOffice) refuse(ctx context.Context, b Binding, payload json.RawMessage, cause error) error {
	_, err := d.client.Insert(ctx, DeadLetterArgs{
		Exchange:   ExchangeDeadLetter,
		RoutingKey: b.DeadLetterKey,
		Queue:      b.Queue,
		Payload:    payload,
		Reason:     cause.Error(),
	}, nil)
	if err != nil {
		// The refusal itself failed; surface it so the job shows up as
		// discarded with both causes rather than silently vanishing.
		return fmt.Errorf("dead-lettering %s message: %w (original: %v)", b.Key, err, cause)
	}
	d.logger.ErrorContext(ctx, "message dead-lettered",
		"queue", b.Queue,
		"routingKey", string(b.Key),
		"deadLetterKey", b.DeadLetterKey,
		"reason", cause.Error(),
	)
	return river.JobCancel(cause)
}

// DeadLetterWorker exists so the dead-letter kind is registered with the
// client. It only runs if an operator adds the dead-letter queue to the
// client configuration to drain captured messages; it logs and acknowledges.
type DeadLetterWorker struct {
	river.WorkerDefaults[DeadLetterArgs]

	Logger *slog.Logger
}

func (w *DeadLetterWorker) Work(ctx context.Context, job *river.Job[DeadLetterArgs]) error {
	w.Logger.WarnContext(ctx, "draining dead letter",
		"routingKey", job.Args.RoutingKey,
		"queue", job.Args.Queue,
		"reason", job.Args.Reason,
		"job_id", job.ID,
	)
	return nil
}
