package decompressor

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// runReporter periodically logs how far the decompression has progressed.
//
// NOTE: This runs on its own ctx created by Run() - it is only cancelled once
// the pump has finished so the final numbers are never lost mid-line.
func (d *Decompressor) runReporter(ctx context.Context) {
	llog := d.log.WithFields(logrus.Fields{
		"method": "runReporter",
	})

	llog.Debug("start")
	defer llog.Debug("exit")

	ticker := time.NewTicker(d.cfg.TOML.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			llog.Debug("received shutdown signal")
			return
		case <-ticker.C:
			llog.Infof("progress: read %d bytes, wrote %d bytes", d.bytesIn.Load(), d.bytesOut.Load())
		}
	}
}
