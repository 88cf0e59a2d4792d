package publish

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"quantscraper/internal/analysis"
)

// Format is an artifact encoding.
type Format string

// Supported formats.
const (
	FormatJSON    Format = "json"
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

// ParseFormat validates a configured format name. Empty means JSON.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatJSON, nil
	case FormatJSON, FormatCSV, FormatParquet:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported output format %q", s)
	}
}

// Ext returns the file extension, dot included.
func (f Format) Ext() string { return "." + string(f) }

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatParquet:
		return "application/vnd.apache.parquet"
	default:
		return "application/json"
	}
}

// Encode serialises v in format f.
func Encode(f Format, v analysis.View) ([]byte, error) {
	switch f {
	case FormatJSON, "":
		return encodeJSON(v)
	case FormatCSV:
		return encodeCSV(v)
	case FormatParquet:
		return encodeParquet(v)
	default:
		return nil, fmt.Errorf("unsupported output format %q", f)
	}
}

// encodeJSON writes an array of objects whose keys follow column order.
func encodeJSON(v analysis.View) ([]byte, error) {
	names := v.ColumnNames()
	keys := make([][]byte, len(names))
	for i, n := range names {
		k, err := json.Marshal(n)
		if err != nil {
			return nil, err
		}
		keys[i] = k
	}

	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, row := range v.Rows() {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('{')
		for j, val := range row {
			if j > 0 {
				buf.WriteByte(',')
			}
			b, err := json.Marshal(val)
			if err != nil {
				return nil, fmt.Errorf("encode %s: %w", names[j], err)
			}
			buf.Write(keys[j])
			buf.WriteByte(':')
			buf.Write(b)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func encodeCSV(v analysis.View) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(v.ColumnNames()); err != nil {
		return nil, err
	}
	for _, row := range v.Rows() {
		fields := make([]string, len(row))
		for i, val := range row {
			fields[i] = formatCell(val)
		}
		if err := w.Write(fields); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatCell(v any) string {
	switch t := v.(type) {
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

type parquetField struct {
	Tag string `json:"Tag"`
}

type parquetSchema struct {
	Tag    string         `json:"Tag"`
	Fields []parquetField `json:"Fields"`
}

func parquetSchemaFor(cols []analysis.Column) (string, error) {
	schema := parquetSchema{Tag: "name=parquet_go_root, repetitiontype=REQUIRED"}
	for _, c := range cols {
		tag := fmt.Sprintf("name=%s, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=REQUIRED", c.Key)
		if c.Kind == analysis.KindNumber {
			tag = fmt.Sprintf("name=%s, type=DOUBLE, repetitiontype=REQUIRED", c.Key)
		}
		schema.Fields = append(schema.Fields, parquetField{Tag: tag})
	}
	b, err := json.Marshal(schema)
	return string(b), err
}

// encodeParquet writes snappy-compressed parquet using snake_case column keys.
func encodeParquet(v analysis.View) ([]byte, error) {
	schema, err := parquetSchemaFor(v.Columns)
	if err != nil {
		return nil, fmt.Errorf("parquet schema: %w", err)
	}

	var buf bytes.Buffer
	pw, err := writer.NewJSONWriter(schema, writerfile.NewWriterFile(&buf), 1)
	if err != nil {
		return nil, fmt.Errorf("new parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, row := range v.Rows() {
		obj := make(map[string]any, len(row))
		for i, val := range row {
			obj[v.Columns[i].Key] = val
		}
		line, err := json.Marshal(obj)
		if err != nil {
			_ = pw.WriteStop()
			return nil, fmt.Errorf("encode parquet row: %w", err)
		}
		if err := pw.Write(string(line)); err != nil {
			_ = pw.WriteStop()
			return nil, fmt.Errorf("write parquet row: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("finalize parquet: %w", err)
	}
	return buf.Bytes(), nil
}
