package common

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"

	"falcon-dedupe/internal/dedupe"
)

// FileType represents the type of file to read
type FileType string

const (
	// FileTypeText indicates a text file with one item per line
	FileTypeText FileType = "text"
	// FileTypeCSV indicates a CSV file
	FileTypeCSV FileType = "csv"
	// FileTypeJSON indicates a JSON array of strings or of objects carrying FieldName
	FileTypeJSON FileType = "json"
)

// ReadItemsFromFileOptions contains options for reading items from a file
type ReadItemsFromFileOptions struct {
	// FieldName is the field read from JSON objects and matched against the CSV header
	FieldName string
	// SkipHeader indicates whether the first CSV row is a header
	SkipHeader bool
	// CommentPrefix is the prefix that indicates a comment line (e.g. "#")
	CommentPrefix string
}

// DefaultReadItemsOptions reads device ids
func DefaultReadItemsOptions() *ReadItemsFromFileOptions {
	return &ReadItemsFromFileOptions{
		FieldName:     "device_id",
		CommentPrefix: "#",
	}
}

// DetectFileType guesses the file type from the extension
func DetectFileType(filePath string) FileType {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".json":
		return FileTypeJSON
	case ".csv":
		return FileTypeCSV
	default:
		return FileTypeText
	}
}

// ReadItemsFromFile reads a list of ids from a text, CSV or JSON file.
// Blank entries and comments are dropped and duplicates removed.
func ReadItemsFromFile(filePath string, fileTypeHint FileType, options *ReadItemsFromFileOptions) ([]string, error) {
	if options == nil {
		options = DefaultReadItemsOptions()
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read file")
	}

	fileType := fileTypeHint
	if fileType == "" {
		fileType = DetectFileType(filePath)
	}

	var items []string
	switch fileType {
	case FileTypeJSON:
		items, err = parseJSONItems(data, options)
	case FileTypeCSV:
		items, err = parseCSVItems(data, options)
	default:
		items = strings.Split(string(data), "\n")
	}
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %s", filePath)
	}

	result := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" || (options.CommentPrefix != "" && strings.HasPrefix(item, options.CommentPrefix)) {
			continue
		}
		result = append(result, item)
	}

	return RemoveDuplicates(result), nil
}

// parseJSONItems accepts ["id", ...] or [{"device_id": "id"}, ...]
func parseJSONItems(data []byte, options *ReadItemsFromFileOptions) ([]string, error) {
	var items []string
	if err := json.Unmarshal(data, &items); err == nil {
		return items, nil
	}

	var objects []map[string]interface{}
	if err := json.Unmarshal(data, &objects); err != nil {
		return nil, errors.Wrap(err, "expected a JSON array of strings or objects")
	}
	if options.FieldName == "" {
		return nil, errors.New("field name is required for JSON objects")
	}

	items = make([]string, 0, len(objects))
	for _, obj := range objects {
		if v, ok := obj[options.FieldName].(string); ok {
			items = append(items, v)
		}
	}
	return items, nil
}

// parseCSVItems reads the FieldName column when the header has one, otherwise the first column
func parseCSVItems(data []byte, options *ReadItemsFromFileOptions) ([]string, error) {
	reader := csv.NewReader(strings.NewReader(string(data)))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse CSV")
	}
	if len(records) == 0 {
		return nil, nil
	}

	column := 0
	skip := options.SkipHeader
	for i, name := range records[0] {
		if options.FieldName != "" && strings.EqualFold(strings.TrimSpace(name), options.FieldName) {
			column = i
			skip = true
			break
		}
	}

	items := make([]string, 0, len(records))
	for i, record := range records {
		if i == 0 && skip {
			continue
		}
		if column < len(record) {
			items = append(items, record[column])
		}
	}
	return items, nil
}

// ReadHostRecords loads a JSON array of host records such as the device details export
func ReadHostRecords(filePath string) ([]dedupe.HostRecord, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read file")
	}

	var records []dedupe.HostRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, errors.Wrapf(err, "parsing host records from %s", filePath)
	}
	return records, nil
}

// WriteHostRecords saves host records as a JSON array readable by ReadHostRecords
func WriteHostRecords(filePath string, records []dedupe.HostRecord) error {
	if records == nil {
		records = []dedupe.HostRecord{}
	}
	data, err := ToJSON(records)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filePath, append(data, '\n'), 0644); err != nil {
		return errors.Wrapf(err, "writing %s", filePath)
	}
	return nil
}
