package sink

import (
	"errors"
	"fmt"

	"github.com/Sumatoshi-tech/faultline/pkg/dataset"
)

// Output formats.
const (
	FormatCSV    = "csv"
	FormatSQLite = "sqlite"
)

// ErrUnknownFormat is returned for an unsupported output format.
var ErrUnknownFormat = errors.New("unknown output format")

// Open creates the sink of project for format at path.
func Open(format, path, project string) (dataset.Sink, error) {
	switch format {
	case FormatCSV, "":
		s, err := CreateCSV(path)
		if err != nil {
			return nil, err
		}

		return s, nil
	case FormatSQLite:
		s, err := OpenSQLite(path, project)
		if err != nil {
			return nil, err
		}

		return s, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}
