package analytics

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jpillora/backoff"
	"github.com/quantwise/chartsync/core"
	"github.com/quantwise/chartsync/timeline"
	"github.com/schollz/progressbar/v3"
)

const (
	batchDays     = 365
	batchAttempts = 3
)

// CSV header names
var csvHeaders = []string{"date", "open", "high", "low", "close"}

// Downloader exports price history from the analytics service to a local
// CSV file. This is a CLI convenience outside the synchronization pipeline,
// so unlike a synchronization pass it retries failed batches.
type Downloader struct {
	service core.Analytics
	log     core.Logger
}

// NewDownloader creates a downloader backed by the given service.
func NewDownloader(service core.Analytics, log core.Logger) Downloader {
	return Downloader{
		service: service,
		log:     log,
	}
}

// Download fetches the price series in yearly batches and writes it to
// outputPath.
func (d Downloader) Download(ctx context.Context, ticker, startDate, endDate, outputPath string) error {
	start, ok := timeline.ParseInstant(startDate)
	if !ok {
		return fmt.Errorf("invalid start date: %s", startDate)
	}

	end, ok := timeline.ParseInstant(endDate)
	if !ok {
		return fmt.Errorf("invalid end date: %s", endDate)
	}

	if end.Before(start) {
		return fmt.Errorf("end date %s precedes start date %s", endDate, startDate)
	}

	recordFile, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer recordFile.Close()

	writer := csv.NewWriter(recordFile)
	if err := writer.Write(csvHeaders); err != nil {
		return err
	}

	totalDays := int(end.Sub(start).Hours()/24) + 1
	d.log.Infof("Downloading %d days of %s price data", totalDays, ticker)
	progressBar := progressbar.Default(int64(totalDays))

	for batchStart := start; !batchStart.After(end); batchStart = batchStart.AddDate(0, 0, batchDays) {
		batchEnd := batchStart.AddDate(0, 0, batchDays-1)
		if batchEnd.After(end) {
			batchEnd = end
		}

		bars, err := d.fetchBatch(ctx, ticker, batchStart, batchEnd)
		if err != nil {
			return err
		}

		for _, bar := range bars {
			row := []string{
				bar.Date,
				strconv.FormatFloat(bar.Open, 'f', -1, 64),
				strconv.FormatFloat(bar.High, 'f', -1, 64),
				strconv.FormatFloat(bar.Low, 'f', -1, 64),
				strconv.FormatFloat(bar.Close, 'f', -1, 64),
			}
			if err := writer.Write(row); err != nil {
				return err
			}
		}

		days := int(batchEnd.Sub(batchStart).Hours()/24) + 1
		if err := progressBar.Add(days); err != nil {
			d.log.Warnf("update progressbar fail: %v", err)
		}
	}

	if err := progressBar.Close(); err != nil {
		d.log.Warnf("Failed to close progress bar: %s", err.Error())
	}

	writer.Flush()
	d.log.Info("Done!")
	return writer.Error()
}

// fetchBatch retries one batch with exponential backoff before giving up.
func (d Downloader) fetchBatch(ctx context.Context, ticker string, start, end time.Time) ([]core.PriceBar, error) {
	retry := &backoff.Backoff{
		Min:    500 * time.Millisecond,
		Max:    10 * time.Second,
		Jitter: true,
	}

	var lastErr error
	for attempt := 0; attempt < batchAttempts; attempt++ {
		bars, err := d.service.PriceSeries(ctx, ticker, timeline.DayKey(start), timeline.DayKey(end))
		if err == nil {
			return bars, nil
		}

		lastErr = err
		d.log.Warnf("batch %s..%s failed (attempt %d): %v", timeline.DayKey(start), timeline.DayKey(end), attempt+1, err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retry.Duration()):
		}
	}

	return nil, fmt.Errorf("batch download failed after %d attempts: %w", batchAttempts, lastErr)
}
