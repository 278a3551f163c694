package parser

import (
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/cnath12/vpc-flow-log-analyzer/internal/model"
	"github.com/cnath12/vpc-flow-log-analyzer/internal/utils"

	"github.com/go-sql-driver/mysql"
)

const DefaultLookupTableName = "lookup_table"

// ER_BAD_FIELD_ERROR
const errUnknownColumn = 1054

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// MariaDBLookupLoader reads lookup rows from a MariaDB/MySQL table. Besides
// the dstport, protocol and tag columns the table needs an id column: rows
// are applied in id order so the last-write-wins rule matches the CSV loader.
// A table missing any of the four columns is reported as ErrSchema.
type MariaDBLookupLoader struct {
	db    *sql.DB
	table string

	Table model.LookupTable
}

func NewMariaDBLookupLoader(dsn, table string) (*MariaDBLookupLoader, error) {
	if table == "" {
		table = DefaultLookupTableName
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid lookup table name %q", table)
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	return &MariaDBLookupLoader{
		db:    db,
		table: table,
		Table: make(model.LookupTable),
	}, nil
}

func (l *MariaDBLookupLoader) Close() {
	l.db.Close()
}

func (l *MariaDBLookupLoader) Load() error {
	rows, err := l.db.Query(fmt.Sprintf("SELECT dstport, protocol, tag FROM %s ORDER BY id ASC", l.table))
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == errUnknownColumn {
			return fmt.Errorf("%w: %v", ErrSchema, err)
		}
		return fmt.Errorf("failed to load lookup rows: %w", err)
	}
	defer rows.Close()

	row := 0
	for rows.Next() {
		row++
		var port, protocol, tag sql.NullString
		if err := rows.Scan(&port, &protocol, &tag); err != nil {
			return err
		}
		if err := l.apply(row, port, protocol, tag); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (l *MariaDBLookupLoader) apply(row int, port, protocol, tag sql.NullString) error {
	for _, col := range []struct {
		name  string
		value sql.NullString
	}{{colDstPort, port}, {colProtocol, protocol}, {colTag, tag}} {
		if !col.value.Valid {
			return fmt.Errorf("%w: row %d: %s is NULL", ErrMalformedLookupRow, row, col.name)
		}
	}
	p, err := utils.ParsePort(port.String)
	if err != nil {
		return fmt.Errorf("%w: row %d: %v", ErrMalformedLookupRow, row, err)
	}
	key := model.LookupKey{
		Port:     p,
		Protocol: model.Protocol(strings.ToLower(strings.TrimSpace(protocol.String))),
	}
	l.Table[key] = tag.String
	return nil
}
