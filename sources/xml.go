package sources

import (
	"encoding/xml"
	"fmt"
	"os"
	"strings"

	"netlab.no/usersync/usersync"
)

const xmlRowDebugLength = 50

// XmlSource decodes an XML document and selects the row elements by their
// element name. A field resolves to an attribute of the row element first,
// then to a single child element of that name.
type XmlSource struct {
	path       string
	data       []byte
	rowElement string
}

func NewXmlFileSource(path string, rowElement string) *XmlSource {
	return &XmlSource{path: path, rowElement: rowElement}
}

func NewXmlDataSource(data []byte, rowElement string) *XmlSource {
	return &XmlSource{data: data, rowElement: rowElement}
}

type xmlElement struct {
	XMLName  xml.Name
	Attrs    []xml.Attr   `xml:",any,attr"`
	Children []xmlElement `xml:",any"`
	Text     string       `xml:",chardata"`
}

func (s *XmlSource) Rows() (rows []usersync.Row, err error) {
	if s.rowElement == "" {
		return nil, fmt.Errorf("the 'Query' setting was not set")
	}
	var data = s.data
	if s.path != "" {
		if data, err = os.ReadFile(s.path); err != nil {
			return nil, fmt.Errorf("reading the file defined in the data source failed. DataSource: %s. Error: %s", s.path, err)
		}
	}
	if data, err = decodeToUTF8(data); err != nil {
		return nil, err
	}

	var root xmlElement
	if err = xml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("decoding the XML document failed: %s", err)
	}

	rows = []usersync.Row{}
	collectRowElements(&root, s.rowElement, &rows)
	return rows, nil
}

func collectRowElements(element *xmlElement, name string, rows *[]usersync.Row) {
	if element.XMLName.Local == name {
		*rows = append(*rows, &xmlRow{element: element})
		return
	}
	for i := range element.Children {
		collectRowElements(&element.Children[i], name, rows)
	}
}

type xmlRow struct {
	element *xmlElement
}

func (r *xmlRow) Field(name string) (string, error) {
	for _, attr := range r.element.Attrs {
		if attr.Name.Local == name {
			return attr.Value, nil
		}
	}
	var matches []*xmlElement
	for i := range r.element.Children {
		if r.element.Children[i].XMLName.Local == name {
			matches = append(matches, &r.element.Children[i])
		}
	}
	if len(matches) > 1 {
		return "", fmt.Errorf(
			"the field name %q resulted in more than one child element in the import row. ImportRow: %s",
			name, r.DebugString())
	}
	if len(matches) == 1 {
		return strings.TrimSpace(matches[0].Text), nil
	}
	return "", fmt.Errorf("the field name %q does not exist in the import row", name)
}

func (r *xmlRow) DebugString() string {
	var sb strings.Builder
	for _, attr := range r.element.Attrs {
		if attr.Value == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(attr.Value)
	}
	for _, child := range r.element.Children {
		var text = strings.TrimSpace(child.Text)
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(text)
	}
	var result = sb.String()
	if len(result) > xmlRowDebugLength {
		result = result[:xmlRowDebugLength]
	}
	return result
}
