package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/fedimod/plume/automod/event"
)

// RecordingModClient is an in-memory ModClient for tests: it records every
// call, hands out sequential report IDs, and can be primed with failures or
// pre-existing remote state. Intentionally exported for use by other packages'
// tests.
type RecordingModClient struct {
	mu sync.Mutex

	Reports         []RecordedReport
	Actions         []RecordedAction
	ResolvedReports []string

	// CreateReportErr / ActionErr, when set, fail the corresponding calls.
	CreateReportErr error
	ActionErr       error
	// Applied simulates restrict state already in effect remotely, keyed by
	// "<account id>/<kind>". PerformAccountAction consults and updates it.
	Applied map[string]bool

	nextReportID int
}

type RecordedReport struct {
	Target event.AccountRef
	Input  ReportInput
	ID     string
}

type RecordedAction struct {
	Target event.AccountRef
	Kind   RestrictKind
	Cites  string
}

func NewRecordingModClient() *RecordingModClient {
	return &RecordingModClient{Applied: make(map[string]bool)}
}

func (c *RecordingModClient) CreateReport(ctx context.Context, target event.AccountRef, in *ReportInput) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.CreateReportErr != nil {
		return "", c.CreateReportErr
	}
	c.nextReportID++
	id := fmt.Sprintf("report-%d", c.nextReportID)
	c.Reports = append(c.Reports, RecordedReport{Target: target, Input: *in, ID: id})
	return id, nil
}

func (c *RecordingModClient) PerformAccountAction(ctx context.Context, target event.AccountRef, kind RestrictKind, citesReport string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ActionErr != nil {
		return c.ActionErr
	}
	key := target.ID + "/" + string(kind)
	if c.Applied[key] {
		return ErrAlreadyApplied
	}
	c.Applied[key] = true
	c.Actions = append(c.Actions, RecordedAction{Target: target, Kind: kind, Cites: citesReport})
	return nil
}

func (c *RecordingModClient) ResolveReport(ctx context.Context, reportID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ResolvedReports = append(c.ResolvedReports, reportID)
	return nil
}

var _ ModClient = (*RecordingModClient)(nil)
