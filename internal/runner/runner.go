// Package runner executes the rows of a table against a workflow, one row
// at a time.
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/deploymenttheory/go-batch-runner/internal/common/errors"
	"github.com/deploymenttheory/go-batch-runner/internal/common/jsonutil"
	"github.com/deploymenttheory/go-batch-runner/internal/logger"
	"github.com/deploymenttheory/go-batch-runner/internal/relay"
	"github.com/deploymenttheory/go-batch-runner/internal/resolver"
	"github.com/deploymenttheory/go-batch-runner/internal/schema"
	"github.com/deploymenttheory/go-batch-runner/internal/table"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// UnknownError is the row message used when a failure carries no text
const UnknownError = "Unknown error"

// DefaultRowDelay paces consecutive rows
const DefaultRowDelay = 200 * time.Millisecond

// RowSink receives row updates. The runner never holds the rows itself; it
// reads a snapshot up front and reports every change through the sink.
type RowSink interface {
	Apply(update table.RowUpdate) error
}

// Job describes one batch run
type Job struct {
	WorkflowID string
	Token      string
	Inputs     []schema.InputColumn
	Outputs    []schema.OutputColumn
	Rows       []table.Row
}

// Progress is reported before each processed row
type Progress struct {
	SessionID    string
	CurrentIndex int
	Total        int
}

// Summary describes a finished run
type Summary struct {
	SessionID string
	Total     int
	Skipped   int
	Succeeded int
	Failed    int
	Cancelled bool
}

// Session is the state of the active run
type Session struct {
	ID           string
	CurrentIndex int
	Total        int
	Running      bool
}

// Options configures a Runner
type Options struct {
	RowDelay   time.Duration
	OnProgress func(Progress)
	OnComplete func(Summary)
	Logger     *zap.SugaredLogger
}

// Runner executes batch jobs. Only one job may run at a time.
type Runner struct {
	relay      relay.Relay
	rowDelay   time.Duration
	onProgress func(Progress)
	onComplete func(Summary)
	logger     *zap.SugaredLogger
	sleep      func(ctx context.Context, d time.Duration) error

	mu      sync.Mutex
	session *Session
}

// New creates a runner that calls workflows through r
func New(r relay.Relay, opts Options) *Runner {
	delay := opts.RowDelay
	if delay < 0 {
		delay = 0
	}
	return &Runner{
		relay:      r,
		rowDelay:   delay,
		onProgress: opts.OnProgress,
		onComplete: opts.OnComplete,
		logger:     logger.Get(opts.Logger),
		sleep:      sleepContext,
	}
}

// Session returns a copy of the active session, or nil when idle
func (r *Runner) Session() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session == nil {
		return nil
	}
	s := *r.session
	return &s
}

// Run executes every row of the job that has not yet succeeded, in order,
// and reports each outcome to sink. Row failures are recorded on the row
// and never end the run. The run stops between rows when ctx is cancelled.
func (r *Runner) Run(ctx context.Context, job Job, sink RowSink) (Summary, error) {
	if strings.TrimSpace(job.Token) == "" {
		return Summary{}, errors.ErrMissingToken
	}

	session, err := r.begin(len(job.Rows))
	if err != nil {
		return Summary{}, err
	}
	defer r.end()

	summary := Summary{SessionID: session.ID, Total: len(job.Rows)}
	log := r.logger.With("session", session.ID, "workflow_id", job.WorkflowID)
	log.Infow("Starting batch run", "rows", len(job.Rows))

	for i, row := range job.Rows {
		if row.Status == table.StatusSuccess {
			summary.Skipped++
			continue
		}
		if ctx.Err() != nil {
			summary.Cancelled = true
			break
		}

		log.Debugf("Executing row %d/%d", i+1, len(job.Rows))
		if err := sink.Apply(table.RowUpdate{Index: i, Status: table.StatusRunning}); err != nil {
			return summary, err
		}
		r.setCurrent(i)
		if r.onProgress != nil {
			r.onProgress(Progress{SessionID: session.ID, CurrentIndex: i, Total: len(job.Rows)})
		}

		update := r.executeRow(ctx, job, i, row)
		if err := sink.Apply(update); err != nil {
			return summary, err
		}
		if update.Status == table.StatusSuccess {
			summary.Succeeded++
		} else {
			summary.Failed++
			log.Warnw(fmt.Sprintf("Row %d/%d failed", i+1, len(job.Rows)), "error", update.ErrorMessage)
		}

		if err := r.sleep(ctx, r.rowDelay); err != nil {
			summary.Cancelled = true
			break
		}
	}

	log.Infow("Batch run finished",
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"cancelled", summary.Cancelled,
	)

	if r.onComplete != nil {
		r.onComplete(summary)
	}
	return summary, nil
}

func (r *Runner) begin(total int) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session != nil {
		return nil, errors.ErrRunInProgress
	}
	r.session = &Session{ID: uuid.NewString(), Total: total, Running: true}
	s := *r.session
	return &s, nil
}

func (r *Runner) setCurrent(index int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session != nil {
		r.session.CurrentIndex = index
	}
}

func (r *Runner) end() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.session = nil
}

// executeRow calls the workflow for one row and builds the update that
// records its outcome
func (r *Runner) executeRow(ctx context.Context, job Job, index int, row table.Row) table.RowUpdate {
	resp, err := r.relay.Run(ctx, job.Token, relay.RunRequest{
		WorkflowID: job.WorkflowID,
		Parameters: BuildParameters(row, job.Inputs),
	})
	if err != nil {
		return failed(index, err.Error())
	}
	if !resp.Succeeded() {
		return failed(index, resp.ErrorMessage())
	}

	result := ResultDocument(resp.Data)
	values := make(map[string]string, len(job.Outputs))
	for _, col := range job.Outputs {
		values[col.Key] = resolver.Resolve(result, col.Path)
	}
	return table.RowUpdate{Index: index, Status: table.StatusSuccess, Values: values}
}

func failed(index int, msg string) table.RowUpdate {
	if strings.TrimSpace(msg) == "" {
		msg = UnknownError
	}
	return table.RowUpdate{Index: index, Status: table.StatusError, ErrorMessage: msg}
}

// BuildParameters maps input columns to workflow parameters. Undefined and
// empty cells are left out.
func BuildParameters(row table.Row, inputs []schema.InputColumn) map[string]interface{} {
	params := make(map[string]interface{}, len(inputs))
	for _, col := range inputs {
		if v, ok := row.Get(col.Key); ok && v != "" {
			params[col.Key] = v
		}
	}
	return params
}

// ResultDocument turns the data of a successful reply into the JSON object
// outputs are resolved against. String data is parsed as JSON, or kept as
// {"raw": data} when that fails; anything that is not an object ends up as
// {"value": result}. Objects are returned as sent, key order included.
func ResultDocument(data json.RawMessage) []byte {
	if !gjson.ValidBytes(data) {
		return rawDocument(string(data))
	}

	result := gjson.ParseBytes(data)
	if result.Type == gjson.String {
		if !gjson.Valid(result.Str) {
			return rawDocument(result.Str)
		}
		result = gjson.Parse(result.Str)
	}

	raw := strings.TrimSpace(result.Raw)
	if result.IsObject() {
		return []byte(raw)
	}
	return []byte(`{"value":` + raw + `}`)
}

func rawDocument(s string) []byte {
	doc, err := jsonutil.Encode(map[string]string{"raw": s})
	if err != nil {
		return []byte("{}")
	}
	return []byte(doc)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
