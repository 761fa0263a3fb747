package reports

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/patrickwarner/trustsafety/internal/models"
)

// ReasonLoader reads the reason rows. db.Store implements it.
type ReasonLoader interface {
	LoadReportReasons(ctx context.Context) ([]models.ReasonInfo, error)
}

type catalogSnapshot struct {
	byCode  map[models.ReportReason]models.ReasonInfo
	ordered []models.ReasonInfo
}

// Catalog is a read-only view of the report reasons. Reload swaps in a new
// snapshot atomically; readers never block.
type Catalog struct {
	loader ReasonLoader
	data   atomic.Pointer[catalogSnapshot]
}

// NewCatalog creates a catalog seeded with the built-in reason codes, so
// lookups work before the first Reload.
func NewCatalog(loader ReasonLoader) *Catalog {
	c := &Catalog{loader: loader}
	seed := make([]models.ReasonInfo, 0, len(models.ReportReasons))
	for _, r := range models.ReportReasons {
		seed = append(seed, models.ReasonInfo{Code: r, DisplayName: string(r)})
	}
	c.data.Store(buildSnapshot(seed))
	return c
}

func buildSnapshot(rows []models.ReasonInfo) *catalogSnapshot {
	s := &catalogSnapshot{byCode: make(map[models.ReportReason]models.ReasonInfo, len(rows))}
	for _, r := range rows {
		if !r.Code.Valid() {
			continue
		}
		s.byCode[r.Code] = r
		s.ordered = append(s.ordered, r)
	}
	return s
}

// Reload replaces the snapshot with the loader's rows. On error the current
// snapshot is kept.
func (c *Catalog) Reload(ctx context.Context) error {
	rows, err := c.loader.LoadReportReasons(ctx)
	if err != nil {
		return fmt.Errorf("load report reasons: %w", err)
	}
	c.data.Store(buildSnapshot(rows))
	return nil
}

// Lookup returns the catalog entry for code.
func (c *Catalog) Lookup(code models.ReportReason) (models.ReasonInfo, bool) {
	info, ok := c.data.Load().byCode[code]
	return info, ok
}

// DisplayName returns the label shown to moderators, falling back to the code.
func (c *Catalog) DisplayName(code models.ReportReason) string {
	if info, ok := c.Lookup(code); ok && info.DisplayName != "" {
		return info.DisplayName
	}
	return string(code)
}

// All returns the reasons in catalog order.
func (c *Catalog) All() []models.ReasonInfo {
	s := c.data.Load()
	out := make([]models.ReasonInfo, len(s.ordered))
	copy(out, s.ordered)
	return out
}
