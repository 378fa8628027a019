package sources

import (
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"netlab.no/usersync/usersync"
)

// SqlSource runs one query per fetch and materializes every result row.
// The connection is opened for the fetch and closed again; an import run
// never holds a connection across row processing.
type SqlSource struct {
	driver string
	dsn    string
	query  string
}

// NewSqlSource builds a source from a data source locator and a query.
// The locator is "driver|dsn"; a locator without the driver part connects
// through the mysql driver.
func NewSqlSource(dataSource string, query string) *SqlSource {
	var driver = "mysql"
	var dsn = dataSource
	if before, after, found := strings.Cut(dataSource, "|"); found {
		driver = before
		dsn = after
	}
	return &SqlSource{driver: driver, dsn: dsn, query: query}
}

func (s *SqlSource) Rows() (rows []usersync.Row, err error) {
	if s.query == "" {
		return nil, fmt.Errorf("the 'Query' setting was not set")
	}
	db, err := sqlx.Connect(s.driver, s.dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to the database failed. Driver: %s. Error: %s", s.driver, err)
	}
	defer db.Close()

	result, err := db.Queryx(s.query)
	if err != nil {
		return nil, fmt.Errorf("executing the query failed. Query: %s. Error: %s", s.query, err)
	}
	defer result.Close()

	rows = []usersync.Row{}
	for result.Next() {
		var record = make(map[string]interface{})
		if err = result.MapScan(record); err != nil {
			return nil, fmt.Errorf("scanning a result row failed: %s", err)
		}
		var row = make(usersync.MapRow, len(record))
		for name, value := range record {
			row[name] = stringifyColumn(value)
		}
		rows = append(rows, row)
	}
	if err = result.Err(); err != nil {
		return nil, fmt.Errorf("iterating the result rows failed: %s", err)
	}
	return rows, nil
}

func stringifyColumn(value interface{}) string {
	switch cv := value.(type) {
	case nil:
		return ""
	case []byte:
		return string(cv)
	case string:
		return cv
	case time.Time:
		return cv.Format(time.RFC3339)
	default:
		return fmt.Sprint(cv)
	}
}
