package service

import (
	"strings"

	"github.com/ddramp/exchange/internal/domain"
	"github.com/shopspring/decimal"
)

const statementFields = 5

// StatementRecord is one line of a bank statement export:
// Date,Description,Amount,Account,Transaction ID.
type StatementRecord struct {
	Date          string
	Description   string
	Amount        decimal.Decimal
	Account       string
	TransactionID string
}

// Statement is a parsed export. Dropped counts lines that were not blank,
// not comments and not the header, yet could not be read as a record.
type Statement struct {
	Records []StatementRecord
	Dropped int
}

// ParseStatement reads a statement export. Text after '#' is ignored.
func ParseStatement(body string) Statement {
	var stmt Statement
	for _, line := range strings.Split(body, "\n") {
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		record, ok := parseStatementLine(line)
		if !ok {
			if !isStatementHeader(line) {
				stmt.Dropped++
			}
			continue
		}
		stmt.Records = append(stmt.Records, record)
	}
	return stmt
}

func parseStatementLine(line string) (StatementRecord, bool) {
	parts := strings.Split(line, ",")
	if len(parts) != statementFields {
		return StatementRecord{}, false
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	amount, err := domain.ParseAmount(parts[2])
	if err != nil {
		return StatementRecord{}, false
	}
	return StatementRecord{
		Date:          parts[0],
		Description:   parts[1],
		Amount:        amount,
		Account:       parts[3],
		TransactionID: parts[4],
	}, true
}

func isStatementHeader(line string) bool {
	parts := strings.Split(line, ",")
	if len(parts) != statementFields {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(parts[0]), "date") &&
		strings.EqualFold(strings.TrimSpace(parts[2]), "amount")
}
