package writer

import (
	"os"

	"github.com/polyrabbit/market-collector/dapplooker"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// MarketWriter appends flattened market records to a CSV file with a frozen
// header. Keys that are not part of the header are dropped. Records are
// de-duplicated by token id for the lifetime of the writer.
type MarketWriter struct {
	path    string
	columns []string
	index   map[string]int
	dynamic map[string]bool

	seen    map[string]struct{}
	dropped map[string]struct{}
	written int
	skipped int
}

// NewMarketWriter creates (or truncates) path and writes the header.
func NewMarketWriter(path string) (*MarketWriter, error) {
	columns := MarketColumns()
	if err := createCSV(path, columns); err != nil {
		return nil, err
	}
	w := &MarketWriter{
		path:    path,
		columns: columns,
		index:   make(map[string]int, len(columns)),
		dynamic: make(map[string]bool, len(marketDataColumns)+len(insightColumns)),
		seen:    make(map[string]struct{}),
		dropped: make(map[string]struct{}),
	}
	for i, column := range columns {
		w.index[column] = i
	}
	for _, column := range marketDataColumns {
		w.dynamic[column] = true
	}
	for _, column := range insightColumns {
		w.dynamic[column] = true
	}
	logrus.Infof("%s created with %d columns", path, len(columns))
	return w, nil
}

func (w *MarketWriter) Path() string      { return w.path }
func (w *MarketWriter) Columns() []string { return w.columns }
func (w *MarketWriter) Written() int      { return w.written }
func (w *MarketWriter) Skipped() int      { return w.skipped }

// Write appends records whose token id has not been written before and
// returns how many rows were added and how many duplicates were skipped.
// Records without an id cannot be de-duplicated and are always written.
func (w *MarketWriter) Write(records []dapplooker.MarketRecord) (added, skipped int, err error) {
	rows := make([][]string, 0, len(records))
	pending := make(map[string]struct{}, len(records))
	for _, record := range records {
		if id := record.ID(); id != "" {
			_, written := w.seen[id]
			_, queued := pending[id]
			if written || queued {
				skipped++
				continue
			}
			pending[id] = struct{}{}
		}
		rows = append(rows, w.flatten(record))
	}

	w.skipped += skipped
	if err := appendCSV(w.path, rows); err != nil {
		return 0, skipped, err
	}
	for id := range pending {
		w.seen[id] = struct{}{}
	}
	w.written += len(rows)

	if len(rows) > 0 {
		logEntry := logrus.WithField("file", w.path)
		if fi, err := os.Stat(w.path); err == nil {
			logEntry = logEntry.WithField("size", fi.Size())
		}
		logEntry.Infof("Added %d records, skipped %d duplicates", len(rows), skipped)
	}
	return len(rows), skipped, nil
}

func (w *MarketWriter) flatten(record dapplooker.MarketRecord) []string {
	row := make([]string, len(w.columns))

	tokenInfo := record.Section(dapplooker.SectionTokenInfo)
	for _, key := range tokenInfoColumns {
		row[w.index[key]] = formatCell(tokenInfo.Get(key))
	}
	technical := record.Section(dapplooker.SectionTechnical)
	for _, key := range technicalColumns {
		row[w.index[key]] = formatCell(technical.Get(key))
	}

	for _, section := range dynamicSections {
		record.Section(section).ForEach(func(key, value gjson.Result) bool {
			if w.dynamic[key.Str] {
				row[w.index[key.Str]] = formatCell(value)
			} else {
				w.drop(section + "." + key.Str)
			}
			return true
		})
	}

	row[w.index[dapplooker.FieldLastUpdatedAt]] = formatCell(record.Get(dapplooker.FieldLastUpdatedAt))
	return row
}

func (w *MarketWriter) drop(key string) {
	if _, ok := w.dropped[key]; ok {
		return
	}
	w.dropped[key] = struct{}{}
	logrus.Debugf("Dropping %s, it is not part of the CSV header", key)
}

// formatCell renders a JSON value as a CSV cell. Numbers keep their exact
// decimal text, absent and null values are empty.
func formatCell(value gjson.Result) string {
	switch value.Type {
	case gjson.Null:
		return ""
	case gjson.String:
		return value.Str
	case gjson.Number:
		d, err := decimal.NewFromString(value.Raw)
		if err != nil {
			return value.Raw
		}
		return d.String()
	default:
		return value.Raw
	}
}
