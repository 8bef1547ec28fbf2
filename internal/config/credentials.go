package config

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
)

// Column headers of the AWS console "Download .csv" export.
const (
	csvAccessKeyColumn = "Access key ID"
	csvSecretKeyColumn = "Secret access key"
)

// Credentials is an AWS access key pair.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
}

// LoadCSVCredentials reads the first usable key pair from an AWS console
// credentials export. A missing file is not an error and returns nil.
func LoadCSVCredentials(path string) (*Credentials, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	return parseCSVCredentials(f)
}

func parseCSVCredentials(r io.Reader) (*Credentials, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	accessIdx, secretIdx := -1, -1
	for i, col := range header {
		switch strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")) {
		case csvAccessKeyColumn:
			accessIdx = i
		case csvSecretKeyColumn:
			secretIdx = i
		}
	}
	if accessIdx < 0 || secretIdx < 0 {
		return nil, fmt.Errorf("missing %q or %q column", csvAccessKeyColumn, csvSecretKeyColumn)
	}

	for {
		row, err := reader.Read()
		if err == io.EOF {
			return nil, nil
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading row: %w", err)
		}
		if accessIdx >= len(row) || secretIdx >= len(row) {
			continue
		}
		access := strings.TrimSpace(row[accessIdx])
		secret := strings.TrimSpace(row[secretIdx])
		if access == "" || secret == "" {
			continue
		}
		return &Credentials{AccessKeyID: access, SecretAccessKey: secret}, nil
	}
}
