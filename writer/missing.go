package writer

import (
	"time"

	"github.com/sirupsen/logrus"
)

const missingTimestampLayout = "2006-01-02 15:04:05"

// MissingLedger records tokens for which no market data could be obtained.
// The header is written once, every later call only appends.
type MissingLedger struct {
	path  string
	count int
	now   func() time.Time
}

func NewMissingLedger(path string) (*MissingLedger, error) {
	if err := createCSV(path, MissingTokenColumns); err != nil {
		return nil, err
	}
	logrus.Infof("%s created for tracking missing market data", path)
	return &MissingLedger{path: path, now: time.Now}, nil
}

func (l *MissingLedger) Path() string { return l.path }

// Count is the number of entries appended so far.
func (l *MissingLedger) Count() int { return l.count }

// Log appends one entry per symbol, all sharing the same timestamp and reason.
func (l *MissingLedger) Log(symbols []string, chain, reason string) error {
	if len(symbols) == 0 {
		return nil
	}
	timestamp := l.now().Format(missingTimestampLayout)
	rows := make([][]string, 0, len(symbols))
	for _, symbol := range symbols {
		rows = append(rows, []string{symbol, chain, timestamp, reason})
	}
	if err := appendCSV(l.path, rows); err != nil {
		return err
	}
	l.count += len(rows)
	return nil
}
