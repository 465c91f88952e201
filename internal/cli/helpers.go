package cli

import (
	"os"

	"github.com/burl-dev/burl/internal/task"
)

// loadTaskFile reads and parses the task file at path.
func loadTaskFile(path string) (*task.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return task.ParseFile(data)
}
