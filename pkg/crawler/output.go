package crawler

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/Sriram-PR/film-indexer/pkg/index"
	"github.com/Sriram-PR/film-indexer/pkg/models"
	"github.com/Sriram-PR/film-indexer/pkg/utils"
)

// ExportResult describes a finished JSONL export
type ExportResult struct {
	Path     string `json:"path" yaml:"path"`
	Records  int    `json:"records" yaml:"records"`
	Checksum string `json:"sha256" yaml:"sha256"`
}

// WriteRecordsJSONL writes every record of idx to path as one JSON object per line,
// sorted by name. The file is written to a temporary name and renamed into place, so a
// failed export never leaves a truncated file behind.
func WriteRecordsJSONL(idx *index.InvertedIndex, path string, log *logrus.Entry) (*ExportResult, error) {
	records := idx.Records()

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create export file for '%s': %w", path, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	writer := bufio.NewWriter(tmp)
	enc := json.NewEncoder(writer)
	enc.SetEscapeHTML(false)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			cleanup()
			return nil, fmt.Errorf("encode record '%s': %w", rec.Name, err)
		}
	}
	if err := writer.Flush(); err != nil {
		cleanup()
		return nil, fmt.Errorf("flush export '%s': %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return nil, fmt.Errorf("sync export '%s': %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("close export '%s': %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("rename export into '%s': %w", path, err)
	}

	checksum, err := utils.FileSHA256(path)
	if err != nil {
		return nil, fmt.Errorf("checksum export '%s': %w", path, err)
	}
	log.WithFields(logrus.Fields{"path": path, "records": len(records), "sha256": checksum}).Info("Records exported")
	return &ExportResult{Path: path, Records: len(records), Checksum: checksum}, nil
}

// crawlReport is the YAML document written by WriteSummaryYAML
type crawlReport struct {
	Summary models.CrawlSummary `yaml:"summary"`
	Export  *ExportResult       `yaml:"export,omitempty"`
}

// WriteSummaryYAML writes the crawl summary (and the export details, if any) to path.
func WriteSummaryYAML(summary models.CrawlSummary, export *ExportResult, path string) error {
	data, err := yaml.Marshal(crawlReport{Summary: summary, Export: export})
	if err != nil {
		return fmt.Errorf("marshal crawl summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write crawl summary '%s': %w", path, err)
	}
	return nil
}
