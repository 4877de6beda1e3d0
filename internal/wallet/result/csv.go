package result

import (
	"context"
	"encoding/csv"
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github/chapool/batch-sender/internal/wallet/transfer"
)

var csvHeader = []string{"type", "from", "to", "txHash", "success", "message"}

var fieldSanitizer = strings.NewReplacer(",", " ", "\r", " ", "\n", " ")

// CSVSink appends one row per outcome to a CSV file. Rows are flushed on every Append.
type CSVSink struct {
	mu   sync.Mutex
	file *os.File
	w    *csv.Writer
}

// OpenCSV opens path for appending and writes the header if the file is new or empty.
func OpenCSV(path string) (*CSVSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644) //nolint:gosec,mnd
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open result file %s", path)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrapf(err, "failed to stat result file %s", path)
	}

	s := &CSVSink{file: f, w: csv.NewWriter(f)}

	if info.Size() == 0 {
		if err := s.w.Write(csvHeader); err != nil {
			_ = f.Close()
			return nil, errors.Wrap(err, "failed to write result header")
		}
		s.w.Flush()
		if err := s.w.Error(); err != nil {
			_ = f.Close()
			return nil, errors.Wrap(err, "failed to write result header")
		}
	}

	return s, nil
}

func (s *CSVSink) Append(_ context.Context, outcomes ...transfer.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range outcomes {
		if err := s.w.Write(csvRow(o)); err != nil {
			return errors.Wrap(err, "failed to write result row")
		}
	}

	s.w.Flush()

	return errors.Wrap(s.w.Error(), "failed to flush result rows")
}

func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.w.Flush()
	if err := s.w.Error(); err != nil {
		_ = s.file.Close()
		return errors.Wrap(err, "failed to flush result rows")
	}

	return errors.Wrap(s.file.Close(), "failed to close result file")
}

func csvRow(o transfer.Outcome) []string {
	var kind, from, to, txHash string
	if req := o.Request; req != nil {
		kind = string(req.Kind)
		if req.From != nil {
			from = req.From.Address.Hex()
		}
		to = req.To.Hex()
	}

	status := "FAIL"
	if o.Success {
		status = "OK"
		txHash = o.TxHash.Hex()
	}

	row := []string{kind, from, to, txHash, status, Message(o)}
	for i := range row {
		row[i] = fieldSanitizer.Replace(row[i])
	}

	return row
}
