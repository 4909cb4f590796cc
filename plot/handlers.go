package plot

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"html/template"
	"net/http"
	"time"
)

// handleHealth handles health check requests
func (c *Chart) handleHealth(w http.ResponseWriter, _ *http.Request) {
	c.Lock()
	lastUpdate := c.lastUpdate
	c.Unlock()

	// unhealthy if no updates in more of 10 minutes
	if time.Since(lastUpdate) > 10*time.Minute {
		w.WriteHeader(http.StatusServiceUnavailable)
		if _, err := w.Write([]byte(lastUpdate.String())); err != nil {
			c.log.Error("Failed to write health status: ", err)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
}

// handleIndex handles the main page request
func (c *Chart) handleIndex(w http.ResponseWriter, _ *http.Request) {
	c.Lock()
	data := map[string]any{
		"theme":  c.theme,
		"script": template.JS(c.scriptContent),
	}
	if c.view != nil {
		data["ticker"] = c.view.Ticker
	}
	c.Unlock()

	w.Header().Set("Content-Type", "text/html")
	if err := c.indexHTML.Execute(w, data); err != nil {
		c.log.Error("Template execution failed: ", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// handleTradeHistoryData handles CSV export of the displayed trade markers
func (c *Chart) handleTradeHistoryData(w http.ResponseWriter, _ *http.Request) {
	c.Lock()
	view := c.view
	c.Unlock()

	if view == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	// Set headers for CSV download
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment;filename=history_"+view.Ticker+".csv")

	// Create CSV in memory
	buffer := bytes.NewBuffer(nil)
	csvWriter := csv.NewWriter(buffer)

	// Write header
	if err := csvWriter.Write([]string{"date", "side", "price", "label"}); err != nil {
		c.log.Error("Failed writing CSV header: ", err)
		http.Error(w, "Failed to generate CSV", http.StatusInternalServerError)
		return
	}

	// Write data rows
	for _, marker := range view.Markers {
		row := []string{
			marker.Time,
			string(marker.Side),
			fmt.Sprintf("%.2f", marker.Price),
			marker.Label,
		}
		if err := csvWriter.Write(row); err != nil {
			c.log.Error("Failed writing CSV data: ", err)
			http.Error(w, "Failed to generate CSV", http.StatusInternalServerError)
			return
		}
	}
	csvWriter.Flush()

	// Send the CSV
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buffer.Bytes()); err != nil {
		c.log.Error("Failed writing CSV response: ", err)
	}
}
