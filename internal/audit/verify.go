package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
)

// Verify walks a log file and checks the hash chain. It returns the
// number of valid entries, or an error naming the first line where the
// chain breaks.
func Verify(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("audit: open log: %w", err)
	}
	defer f.Close()

	want := GenesisHash
	count := 0

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			return count, fmt.Errorf("audit: line %d: invalid JSON: %w", count+1, err)
		}
		if entry.PrevHash != want {
			return count, fmt.Errorf("audit: line %d: chain broken (prev_hash %s, want %s)",
				count+1, entry.PrevHash, want)
		}

		want = hashLine(append([]byte(nil), line...))
		count++
	}
	if err := scanner.Err(); err != nil {
		return count, fmt.Errorf("audit: scan log: %w", err)
	}
	return count, nil
}
