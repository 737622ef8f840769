package export

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/centralpricelist/pricelist/internal/pricelist"
)

const (
	csvFlushEvery = 200
	csvBufferSize = 32 * 1024
)

// CSVHeader is the column order of the CSV export.
var CSVHeader = []string{"product_id", "name", "description", "price", "category_id", "supplier", "currency", "created_at", "updated_at"}

type csvStreamer struct {
	buf          *bufio.Writer
	csv          *csv.Writer
	flushEvery   int
	pendingLines int
}

func newCSVStreamer(w io.Writer) *csvStreamer {
	buf := bufio.NewWriterSize(w, csvBufferSize)
	writer := csv.NewWriter(buf)
	writer.UseCRLF = true
	return &csvStreamer{buf: buf, csv: writer, flushEvery: csvFlushEvery}
}

func (s *csvStreamer) writeRow(row []string) error {
	if s == nil || s.csv == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	if err := s.csv.Write(row); err != nil {
		return err
	}
	s.pendingLines++
	if s.flushEvery > 0 && s.pendingLines >= s.flushEvery {
		return s.Flush()
	}
	return nil
}

func (s *csvStreamer) Flush() error {
	if s == nil || s.csv == nil || s.buf == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	s.csv.Flush()
	if err := s.csv.Error(); err != nil {
		return err
	}
	if err := s.buf.Flush(); err != nil {
		return err
	}
	s.pendingLines = 0
	return nil
}

// WriteCSV streams records as CSV, flushing every few hundred rows.
func WriteCSV(w io.Writer, records []pricelist.ProductRecord) error {
	streamer := newCSVStreamer(w)
	if err := streamer.writeRow(CSVHeader); err != nil {
		return err
	}
	for _, rec := range records {
		if err := streamer.writeRow([]string{
			rec.ProductID,
			rec.Name,
			rec.Description,
			formatPrice(rec.Price()),
			strconv.Itoa(rec.CategoryID),
			rec.Supplier,
			rec.Currency,
			formatTime(rec.CreatedAt),
			formatTime(rec.UpdatedAt),
		}); err != nil {
			return err
		}
	}
	return streamer.Flush()
}
