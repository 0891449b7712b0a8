package count

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// IDGenerator выдает локальные идентификаторы позиций.
// Идентификаторы строго возрастают в пределах процесса и никогда не повторяются:
// миллисекунды времени создания (не меньше предыдущего значения + 1) и случайный суффикс.
type IDGenerator struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func NewIDGenerator() *IDGenerator {
	return &IDGenerator{now: time.Now}
}

// Seed сдвигает нижнюю границу, например по последнему сохраненному идентификатору.
func (g *IDGenerator) Seed(lastMillis int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if lastMillis > g.last {
		g.last = lastMillis
	}
}

func (g *IDGenerator) Next() string {
	g.mu.Lock()
	ms := g.now().UnixMilli()
	if ms <= g.last {
		ms = g.last + 1
	}
	g.last = ms
	g.mu.Unlock()

	return fmt.Sprintf("%013d-%s", ms, uuid.NewString()[:8])
}

// MillisOf возвращает временную часть локального идентификатора.
func MillisOf(localID string) (int64, bool) {
	head, _, ok := strings.Cut(localID, "-")
	if !ok {
		return 0, false
	}
	ms, err := strconv.ParseInt(head, 10, 64)
	if err != nil {
		return 0, false
	}
	return ms, true
}
