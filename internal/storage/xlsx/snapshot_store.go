// Package xlsx implements the snapshot store on a spreadsheet workbook.
package xlsx

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"solana-portfolio-watch/internal/domain"
	"solana-portfolio-watch/internal/observability"
	"solana-portfolio-watch/internal/storage"
)

// Defaults for the workbook layout.
const (
	DefaultPath  = "tokens.xlsx"
	DefaultSheet = "Token Details"
)

// Column headers. Columns are located by these names, never by position.
const (
	HeaderName       = "Token Name"
	HeaderSymbol     = "Symbol"
	HeaderMint       = "Mint Address"
	HeaderBalance    = "Balance"
	HeaderPriceUSD   = "Price USD"
	HeaderMarketCap  = "Market Cap"
	HeaderTotalValue = "Total Value"
)

// Headers is the header row written to a new sheet.
var Headers = []string{
	HeaderName, HeaderSymbol, HeaderMint, HeaderBalance,
	HeaderPriceUSD, HeaderMarketCap, HeaderTotalValue,
}

// ErrMissingHeader is returned when the sheet lacks a required column.
var ErrMissingHeader = errors.New("missing column header")

// SnapshotStore is a storage.SnapshotStore backed by one sheet of an xlsx workbook.
// The workbook file is the source of truth: every call re-reads it, and every
// write replaces it atomically.
type SnapshotStore struct {
	mu     sync.Mutex
	path   string
	sheet  string
	logger *zap.Logger
}

// Options configures a SnapshotStore.
type Options struct {
	Path   string
	Sheet  string
	Logger *zap.Logger
}

// NewSnapshotStore creates a workbook-backed store. Call Init before use.
func NewSnapshotStore(opts Options) *SnapshotStore {
	path := opts.Path
	if path == "" {
		path = DefaultPath
	}

	sheet := opts.Sheet
	if sheet == "" {
		sheet = DefaultSheet
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &SnapshotStore{
		path:   path,
		sheet:  sheet,
		logger: logger,
	}
}

// Path returns the workbook path.
func (s *SnapshotStore) Path() string {
	return s.path
}

// Init creates the workbook, the sheet and its header row when missing.
func (s *SnapshotStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, created, err := s.openOrCreate()
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := f.GetRows(s.sheet)
	if err != nil {
		return errors.Wrap(err, "read sheet")
	}

	if len(rows) > 0 && !isBlank(rows[0]) {
		if _, err := mapColumns(rows[0]); err != nil {
			return err
		}
		if !created {
			return nil
		}
	}

	if err := writeHeader(f, s.sheet); err != nil {
		return err
	}
	s.logger.Info("initialized workbook", zap.String("path", s.path), zap.String("sheet", s.sheet))
	return s.save(f)
}

// openOrCreate opens the workbook, creating it or the sheet when absent.
// created reports whether anything was added.
func (s *SnapshotStore) openOrCreate() (*excelize.File, bool, error) {
	f, err := excelize.OpenFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		f = excelize.NewFile()
		if err := f.SetSheetName(f.GetSheetName(0), s.sheet); err != nil {
			f.Close()
			return nil, false, errors.Wrap(err, "rename default sheet")
		}
		return f, true, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "open workbook %s", s.path)
	}

	idx, err := f.GetSheetIndex(s.sheet)
	if err != nil {
		f.Close()
		return nil, false, errors.Wrap(err, "lookup sheet")
	}
	if idx == -1 {
		if _, err := f.NewSheet(s.sheet); err != nil {
			f.Close()
			return nil, false, errors.Wrap(err, "create sheet")
		}
		return f, true, nil
	}

	return f, false, nil
}

func writeHeader(f *excelize.File, sheet string) error {
	header := make([]interface{}, len(Headers))
	for i, h := range Headers {
		header[i] = h
	}
	return errors.Wrap(f.SetSheetRow(sheet, "A1", &header), "write header")
}

// Get retrieves the row for mint. Returns ErrNotFound if absent.
func (s *SnapshotStore) Get(_ context.Context, mint string) (row *domain.SnapshotRow, err error) {
	defer s.record("get", time.Now(), &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	sh, err := s.load()
	if err != nil {
		return nil, err
	}
	defer sh.file.Close()

	i := sh.find(mint)
	if i < 0 {
		return nil, storage.ErrNotFound
	}
	return sh.parse(sh.rows[i], s.logger), nil
}

// Upsert writes row in place when its mint exists, otherwise appends it.
// The workbook is saved before Upsert returns.
func (s *SnapshotStore) Upsert(_ context.Context, row *domain.SnapshotRow) (err error) {
	defer s.record("upsert", time.Now(), &err)

	if row == nil {
		return storage.ErrInvalidInput
	}
	r := *row
	if err := storage.PrepareRow(&r); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sh, err := s.load()
	if err != nil {
		return err
	}
	defer sh.file.Close()

	i := sh.find(r.Mint)
	if i < 0 {
		i = len(sh.rows)
	}

	// sheet rows are 1-based and rows[0] is the header
	if err := sh.write(i+1, &r); err != nil {
		return err
	}

	return s.save(sh.file)
}

// ListAll returns all rows in sheet order, one per mint.
func (s *SnapshotStore) ListAll(_ context.Context) (result []*domain.SnapshotRow, err error) {
	defer s.record("list_all", time.Now(), &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	sh, err := s.load()
	if err != nil {
		return nil, err
	}
	defer sh.file.Close()

	seen := make(map[string]bool)
	for _, cells := range sh.rows[1:] {
		mint := sh.cell(cells, sh.cols.mint)
		if mint == "" {
			continue
		}
		// Get and Upsert act on the first row of a mint; later copies are ignored.
		if seen[mint] {
			s.logger.Warn("duplicate mint row in workbook, ignoring", zap.String("mint", mint))
			continue
		}
		seen[mint] = true
		result = append(result, sh.parse(cells, s.logger))
	}

	return result, nil
}

func (s *SnapshotStore) record(op string, start time.Time, err *error) {
	observability.RecordDBQuery("xlsx", op, time.Since(start).Seconds(), *err)
}

// save writes the workbook to a temp file next to it and renames it into place.
func (s *SnapshotStore) save(f *excelize.File) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".tmp-*"+filepath.Ext(s.path))
	if err != nil {
		return errors.Wrap(err, "create temp workbook")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := f.Write(tmp); err != nil {
		tmp.Close()
		return errors.Wrap(err, "write workbook")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "sync workbook")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp workbook")
	}

	return errors.Wrap(os.Rename(tmpName, s.path), "replace workbook")
}

// columns holds 0-based column indexes resolved from the header row.
type columns struct {
	name, symbol, mint, balance, price, mcap, total int
}

func mapColumns(header []string) (columns, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}

	var cols columns
	targets := []struct {
		header string
		dst    *int
	}{
		{HeaderName, &cols.name},
		{HeaderSymbol, &cols.symbol},
		{HeaderMint, &cols.mint},
		{HeaderBalance, &cols.balance},
		{HeaderPriceUSD, &cols.price},
		{HeaderMarketCap, &cols.mcap},
		{HeaderTotalValue, &cols.total},
	}
	for _, t := range targets {
		i, ok := index[t.header]
		if !ok {
			return columns{}, errors.Wrapf(ErrMissingHeader, "%q", t.header)
		}
		*t.dst = i
	}

	return cols, nil
}

// loadedSheet is one read of the sheet, valid while the store lock is held.
type loadedSheet struct {
	file  *excelize.File
	sheet string
	rows  [][]string
	cols  columns
}

func (s *SnapshotStore) load() (*loadedSheet, error) {
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, errors.Wrapf(err, "open workbook %s", s.path)
	}

	rows, err := f.GetRows(s.sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "read sheet %q", s.sheet)
	}
	if len(rows) == 0 {
		f.Close()
		return nil, errors.Wrapf(ErrMissingHeader, "sheet %q is empty", s.sheet)
	}

	cols, err := mapColumns(rows[0])
	if err != nil {
		f.Close()
		return nil, err
	}

	return &loadedSheet{file: f, sheet: s.sheet, rows: rows, cols: cols}, nil
}

// find returns the index into rows of the first data row holding mint, or -1.
func (sh *loadedSheet) find(mint string) int {
	for i := 1; i < len(sh.rows); i++ {
		if sh.cell(sh.rows[i], sh.cols.mint) == mint {
			return i
		}
	}
	return -1
}

func (sh *loadedSheet) cell(cells []string, col int) string {
	if col >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[col])
}

func (sh *loadedSheet) parse(cells []string, logger *zap.Logger) *domain.SnapshotRow {
	mint := sh.cell(cells, sh.cols.mint)
	num := func(col int, header string) decimal.Decimal {
		raw := sh.cell(cells, col)
		if raw == "" {
			return decimal.Zero
		}
		v, err := decimal.NewFromString(raw)
		if err != nil {
			logger.Warn("unparsable cell treated as zero",
				zap.String("mint", mint), zap.String("column", header), zap.String("value", raw))
			return decimal.Zero
		}
		return v
	}

	return &domain.SnapshotRow{
		Name:       sh.cell(cells, sh.cols.name),
		Symbol:     sh.cell(cells, sh.cols.symbol),
		Mint:       mint,
		Quantity:   num(sh.cols.balance, HeaderBalance),
		PriceUSD:   num(sh.cols.price, HeaderPriceUSD),
		MarketCap:  num(sh.cols.mcap, HeaderMarketCap),
		TotalValue: num(sh.cols.total, HeaderTotalValue),
	}
}

// write sets every column of row r (1-based sheet row).
func (sh *loadedSheet) write(r int, row *domain.SnapshotRow) error {
	strs := []struct {
		col int
		val string
	}{
		{sh.cols.name, row.Name},
		{sh.cols.symbol, row.Symbol},
		{sh.cols.mint, row.Mint},
	}
	for _, c := range strs {
		ref, err := excelize.CoordinatesToCellName(c.col+1, r)
		if err != nil {
			return errors.Wrap(err, "cell reference")
		}
		if err := sh.file.SetCellStr(sh.sheet, ref, c.val); err != nil {
			return errors.Wrapf(err, "set %s", ref)
		}
	}

	// numeric cells keep the exact decimal text
	nums := []struct {
		col int
		val decimal.Decimal
	}{
		{sh.cols.balance, row.Quantity},
		{sh.cols.price, row.PriceUSD},
		{sh.cols.mcap, row.MarketCap},
		{sh.cols.total, row.TotalValue},
	}
	for _, c := range nums {
		ref, err := excelize.CoordinatesToCellName(c.col+1, r)
		if err != nil {
			return errors.Wrap(err, "cell reference")
		}
		if err := sh.file.SetCellDefault(sh.sheet, ref, c.val.String()); err != nil {
			return errors.Wrapf(err, "set %s", ref)
		}
	}

	return nil
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

var _ storage.SnapshotStore = (*SnapshotStore)(nil)
