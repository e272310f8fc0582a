package ledger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"tally/internal/core"
)

// TransactionsHeader is the CSV header for transaction files.
const TransactionsHeader = "date,kind,amount,category_id,account_id,note"

// CategoriesHeader is the CSV header for category files.
const CategoriesHeader = "id,name,color"

const (
	txNumFields  = 6
	txColDate    = 0
	txColKind    = 1
	txColAmount  = 2
	txColCatID   = 3
	txColAcctID  = 4
	txColNote    = 5
	catNumFields = 3
	catColID     = 0
	catColName   = 1
	catColColor  = 2
	dateFormat   = "2006-01-02"
	dateTimeFmt  = "2006-01-02 15:04"
)

// ReadTransactions parses a transaction CSV. Dates without a zone are read in loc.
// An empty kind column lets the sign of the amount decide: negative amounts are
// expenses, positive ones income.
func ReadTransactions(r io.Reader, loc *time.Location) ([]core.Transaction, error) {
	if loc == nil {
		loc = time.UTC
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = txNumFields
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading transactions CSV: %w", err)
	}
	if len(records) <= 1 {
		return nil, nil
	}

	var txs []core.Transaction
	for i, rec := range records[1:] {
		tx, err := parseTransactionRow(rec, loc)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

func parseTransactionRow(rec []string, loc *time.Location) (core.Transaction, error) {
	at, err := parseDate(rec[txColDate], loc)
	if err != nil {
		return core.Transaction{}, err
	}

	raw := strings.TrimSpace(rec[txColAmount])
	negative := strings.HasPrefix(raw, "-")
	unsigned := raw
	if negative || strings.HasPrefix(raw, "+") {
		unsigned = raw[1:]
	}
	cents, err := core.ParseDecimalToCents(unsigned)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parsing amount %q: %w", raw, err)
	}

	var kind core.Kind
	if strings.TrimSpace(rec[txColKind]) == "" {
		kind = core.Income
		if negative {
			kind = core.Expense
		}
	} else {
		if negative {
			return core.Transaction{}, fmt.Errorf("signed amount %q with explicit kind: %w", raw, core.ErrInvalidAmount)
		}
		if kind, err = core.ParseKind(rec[txColKind]); err != nil {
			return core.Transaction{}, err
		}
	}

	catID, err := parseID(rec[txColCatID])
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parsing category_id: %w", err)
	}
	acctID, err := parseID(rec[txColAcctID])
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parsing account_id: %w", err)
	}

	tx := core.Transaction{
		Amount:     core.Money{Cents: cents},
		Kind:       kind,
		CategoryID: catID,
		AccountID:  acctID,
		OccurredAt: at,
		Note:       rec[txColNote],
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	return tx, nil
}

func parseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return core.TruncateMillis(t), nil
	}
	for _, layout := range []string{dateTimeFmt, dateFormat} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parsing date %q: %w", s, core.ErrMissingDate)
}

func parseID(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if id < 0 {
		return 0, errors.New("negative id")
	}
	return id, nil
}

// WriteTransactions writes txs as CSV, including the header.
func WriteTransactions(w io.Writer, txs []core.Transaction) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(TransactionsHeader, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, tx := range txs {
		row := make([]string, txNumFields)
		row[txColDate] = tx.OccurredAt.Format(time.RFC3339)
		row[txColKind] = tx.Kind.String()
		row[txColAmount] = tx.Amount.String()
		row[txColCatID] = strconv.FormatInt(tx.CategoryID, 10)
		row[txColAcctID] = strconv.FormatInt(tx.AccountID, 10)
		row[txColNote] = tx.Note
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	return cw.Error()
}

// ReadCategories parses a category CSV.
func ReadCategories(r io.Reader) ([]core.Category, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = catNumFields
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading categories CSV: %w", err)
	}
	if len(records) <= 1 {
		return nil, nil
	}

	var cats []core.Category
	for i, rec := range records[1:] {
		id, err := parseID(rec[catColID])
		if err != nil || id == 0 {
			return nil, fmt.Errorf("row %d: invalid id %q", i+2, rec[catColID])
		}
		c := core.Category{ID: id, Name: strings.TrimSpace(rec[catColName]), Color: strings.TrimSpace(rec[catColColor])}
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		cats = append(cats, c)
	}
	return cats, nil
}
