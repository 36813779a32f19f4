package recorder

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Chrissou78/omniswap-sub002/internal/domain/entities"
)

// JSONLRecorder appends records to a JSONL file
type JSONLRecorder struct {
	path string
	mu   sync.Mutex
}

func NewJSONLRecorder(path string) *JSONLRecorder {
	return &JSONLRecorder{path: path}
}

// Record appends one record as a JSON line
func (r *JSONLRecorder) Record(ctx context.Context, rec entities.TransactionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal transaction record: %w", err)
	}

	dir := filepath.Dir(r.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write transaction record: %w", err)
	}
	return nil
}

// ReadAll loads every record in the log, oldest first
func (r *JSONLRecorder) ReadAll() ([]entities.TransactionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := os.Open(r.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open transaction log: %w", err)
	}
	defer file.Close()

	var out []entities.TransactionRecord
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var rec entities.TransactionRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return out, fmt.Errorf("decode transaction record: %w", err)
		}
		out = append(out, rec)
	}
	return out, scanner.Err()
}
