package sources

import (
	"netlab.no/usersync/usersync"
)

// The source identifiers resolved from the "Handler Class" setting of an
// import definition.
const (
	CsvSourceID = "CSVFileDataMap"
	SqlSourceID = "SqlDataMap"
	XmlSourceID = "XmlDataMap"
)

func init() {
	// for CSV the query setting carries the field separator
	usersync.RegisterSource(CsvSourceID, func(dataSource string, query string) (usersync.IRowSource, error) {
		return NewCsvFileSource(dataSource, query), nil
	})
	usersync.RegisterSource(SqlSourceID, func(dataSource string, query string) (usersync.IRowSource, error) {
		return NewSqlSource(dataSource, query), nil
	})
	usersync.RegisterSource(XmlSourceID, func(dataSource string, query string) (usersync.IRowSource, error) {
		return NewXmlFileSource(dataSource, query), nil
	})
}
