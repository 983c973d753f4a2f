// Package batch bounds the number of records ingested between two flushes of
// the entry store.
package batch

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
)

const DefaultThreshold = 500000

type Flusher interface {
	Flush(ctx context.Context) error
}

// Controller counts consumed records and flushes once the threshold is hit.
// It is owned by a single ingestion run and is not safe for concurrent use.
type Controller struct {
	flusher   Flusher
	threshold int
	count     int
	flushes   int
	total     int
}

func NewController(flusher Flusher, threshold int) *Controller {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Controller{flusher: flusher, threshold: threshold}
}

// Record accounts for one consumed record and flushes when the pending count
// reaches the threshold.
func (c *Controller) Record(ctx context.Context) error {
	c.count++
	c.total++
	if c.count < c.threshold {
		return nil
	}
	return c.Flush(ctx)
}

// Flush forces a flush and resets the pending count. The count is kept when
// the flush fails so the caller can retry the batch.
func (c *Controller) Flush(ctx context.Context) error {
	if err := c.flusher.Flush(ctx); err != nil {
		return fmt.Errorf("flush after %d records: %w", c.count, err)
	}
	c.flushes++
	log.Debug("Batch flushed", "records", c.count, "total", c.total, "flushes", c.flushes)
	c.count = 0
	return nil
}

func (c *Controller) Pending() int   { return c.count }
func (c *Controller) Flushes() int   { return c.flushes }
func (c *Controller) Threshold() int { return c.threshold }
func (c *Controller) Total() int     { return c.total }
