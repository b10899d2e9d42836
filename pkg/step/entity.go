package step

import (
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/chazu/stepview/pkg/logger"
)

// Entity is one `#<id> = TYPE(...)` record.
type Entity struct {
	ID         int
	Type       string
	Parameters []string // top-level parameter tokens, in order
	Raw        string   // trimmed source line
}

// Entities maps entity ids to records. When a file repeats an id the later
// record replaces the earlier one (last write wins).
type Entities map[int]Entity

// entityPattern matches an entity record on a single line. The parameter group
// runs from the first opening parenthesis to the last closing one.
var entityPattern = regexp.MustCompile(`^#(\d+)\s*=\s*([^(]+)\((.*)\)`)

// Parse collects the entity records of a STEP file. Lines that are not
// single-line entity records are ignored.
func Parse(text string) Entities {
	entities := make(Entities)
	skipped := 0
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "#") {
			continue
		}
		e, ok := parseEntity(trimmed)
		if !ok {
			skipped++
			continue
		}
		entities[e.ID] = e
	}
	if skipped > 0 {
		logger.Log.WithField("skipped", skipped).Debug("step: skipped unrecognised records")
	}
	return entities
}

// parseEntity parses one trimmed line starting with '#'.
func parseEntity(line string) (Entity, bool) {
	m := entityPattern.FindStringSubmatch(line)
	if m == nil {
		return Entity{}, false
	}
	id, err := strconv.Atoi(m[1])
	if err != nil {
		return Entity{}, false
	}
	return Entity{
		ID:         id,
		Type:       strings.TrimSpace(m[2]),
		Parameters: SplitParameters(m[3]),
		Raw:        line,
	}, true
}

// IDs returns the entity ids in ascending order.
func (es Entities) IDs() []int {
	ids := make([]int, 0, len(es))
	for id := range es {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// OfType returns the entities with the given type tag in ascending id order.
func (es Entities) OfType(typ string) []Entity {
	var out []Entity
	for _, id := range es.IDs() {
		if e := es[id]; e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

// CountByType returns the number of records per entity type.
func (es Entities) CountByType() map[string]int {
	counts := make(map[string]int)
	for _, e := range es {
		counts[e.Type]++
	}
	return counts
}
