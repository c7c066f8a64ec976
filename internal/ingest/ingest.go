package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/rewired-gh/venuepulse/internal/learning"
	"github.com/rewired-gh/venuepulse/internal/logger"
	"github.com/rewired-gh/venuepulse/internal/metrics"
	"github.com/rewired-gh/venuepulse/internal/models"
)

// Ingestion source names, used as metric labels.
const (
	SourceMQTT  = "mqtt"
	SourceKafka = "kafka"
)

// saveTimeout bounds a single sink write.
const saveTimeout = 10 * time.Second

// processor decodes a raw device message and stores the resulting reading.
// It is shared by every transport.
type processor struct {
	source  string
	sink    ReadingSink
	metrics *metrics.Metrics
	now     func() time.Time
}

func (p *processor) process(ctx context.Context, fallbackVenue string, data []byte) error {
	r, err := p.decode(fallbackVenue, data)
	if err != nil {
		return err
	}
	return p.save(ctx, r)
}

// decode turns a raw message into a reading. Undecodable messages are
// dropped rather than redelivered.
func (p *processor) decode(fallbackVenue string, data []byte) (models.Reading, error) {
	r, err := Decode(data, fallbackVenue, p.now())
	if err != nil {
		p.metrics.IncDecodeError(p.source)
		return models.Reading{}, err
	}
	p.flagOutOfRange(r)
	return r, nil
}

// flagOutOfRange counts factor values the range learner cannot use. The
// reading is still stored; a device reporting sound in dBFS instead of dB
// shows up here rather than silently dropping out of sound learning.
func (p *processor) flagOutOfRange(r models.Reading) {
	for _, f := range models.LearnedFactors() {
		v, ok := r.Value(f)
		if !ok {
			continue
		}
		lo, hi, ok := learning.LearnableBounds(f)
		if !ok || (v >= lo && v <= hi) {
			continue
		}
		p.metrics.IncOutOfRange(p.source, string(f))
		logger.Debug("%s reading for %s has %s %.1f %s outside learnable range [%.0f, %.0f]",
			p.source, r.VenueID, f, v, f.Unit(), lo, hi)
	}
}

func (p *processor) save(ctx context.Context, r models.Reading) error {
	saveCtx, cancel := context.WithTimeout(ctx, saveTimeout)
	defer cancel()
	if err := p.sink.SaveReadings(saveCtx, []models.Reading{r}); err != nil {
		return fmt.Errorf("failed to save reading for %s: %w", r.VenueID, err)
	}
	p.metrics.AddIngested(p.source, 1)
	logger.Debug("Ingested %s reading for %s at %s", p.source, r.VenueID, r.Timestamp.Format(time.RFC3339))
	return nil
}
