// Package materials loads the list of critical raw materials tracked per device.
//
// The list is read once at startup and never mutated afterwards, so a List
// can be shared by every concurrent request without locking.
package materials

import (
	"bufio"
	_ "embed" // Blank import: enables //go:embed for the default list.
	"fmt"
	"io"
	"os"
	"strings"
)

//go:embed critical_raw_materials.txt
var defaultList string

// List is an ordered, duplicate-free set of material identifiers.
type List struct {
	ids []string
}

// Load reads the material list from path, or the built-in EU list when path is empty.
func Load(path string) (List, error) {
	if path == "" {
		return Parse(strings.NewReader(defaultList))
	}

	f, err := os.Open(path)
	if err != nil {
		return List{}, fmt.Errorf("opening material list: %w", err)
	}
	defer f.Close()

	list, err := Parse(f)
	if err != nil {
		return List{}, fmt.Errorf("reading material list %s: %w", path, err)
	}
	return list, nil
}

// Parse reads one material per line. Blank lines and lines starting with '#'
// are skipped; repeated entries keep their first position.
func Parse(r io.Reader) (List, error) {
	seen := make(map[string]struct{})
	var ids []string

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, dup := seen[line]; dup {
			continue
		}
		seen[line] = struct{}{}
		ids = append(ids, line)
	}
	if err := scanner.Err(); err != nil {
		return List{}, err
	}
	if len(ids) == 0 {
		return List{}, fmt.Errorf("material list is empty")
	}

	return List{ids: ids}, nil
}

// New builds a List from identifiers, applying the same rules as Parse.
func New(ids ...string) (List, error) {
	return Parse(strings.NewReader(strings.Join(ids, "\n")))
}

// IDs returns a copy of the identifiers in list order.
func (l List) IDs() []string {
	out := make([]string, len(l.ids))
	copy(out, l.ids)
	return out
}

// Len returns the number of materials.
func (l List) Len() int { return len(l.ids) }

// At returns the i-th material identifier.
func (l List) At(i int) string { return l.ids[i] }
