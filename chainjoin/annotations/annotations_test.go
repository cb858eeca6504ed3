package annotations

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorRecordsAndForwards(t *testing.T) {
	var seen []string
	c := NewCollector(func(e Event) { seen = append(seen, e.Name) })

	c.AddTiming(RelationLoaded, time.Now(), map[string]interface{}{"relation": "S", "tuples.count": 2})
	c.Add(Event{Name: QueryComplete, Data: map[string]interface{}{"success": true}})

	assert.Equal(t, []string{RelationLoaded, QueryComplete}, seen)
	require.Len(t, c.Events(), 2)
	assert.Len(t, c.Find(RelationLoaded), 1)
	assert.GreaterOrEqual(t, int64(c.Events()[0].Latency), int64(0))

	c.Reset()
	assert.Empty(t, c.Events())
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	assert.False(t, c.Enabled())
	c.Add(Event{Name: QueryInvoked})
	c.AddTiming(QueryInvoked, time.Now(), nil)
	c.Reset()
	assert.Nil(t, c.Events())
}

func TestCollectorConcurrentAdd(t *testing.T) {
	c := NewCollector(nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Add(Event{Name: BatchComplete})
			}
		}()
	}
	wg.Wait()
	assert.Len(t, c.Events(), 800)
}

func TestPlainFormatter(t *testing.T) {
	f := NewPlainFormatter(&bytes.Buffer{})

	tests := []struct {
		name     string
		event    Event
		contains []string
	}{
		{
			name:     "loaded",
			event:    Event{Name: RelationLoaded, Data: map[string]interface{}{"relation": "S", "tuples.count": 2}},
			contains: []string{"[0µs]", "Loaded S with 2 tuples"},
		},
		{
			name: "indexed",
			event: Event{Name: RelationIndexed, Data: map[string]interface{}{
				"relation": "R", "key.column": 1, "keys.count": 3, "bucket.max": 2,
			}},
			contains: []string{"Indexed R on column 1: 3 keys, largest bucket 2"},
		},
		{
			name: "stage",
			event: Event{Name: StageComplete, Latency: 2500 * time.Microsecond, Data: map[string]interface{}{
				"stage": 2, "relation": "U", "candidates": 10, "passed": 4, "probes": 6, "misses": 1,
			}},
			contains: []string{"[2.5ms]", "Stage 2 U: 10 candidates → 4 passed (6 probes, 1 misses)"},
		},
		{
			name: "completed",
			event: Event{Name: QueryComplete, Data: map[string]interface{}{
				"success": true, "results.count": 1, "driving.count": 2,
			}},
			contains: []string{"Query done with 1 results from 2 driving."},
		},
		{
			name:     "failed",
			event:    Event{Name: QueryComplete, Data: map[string]interface{}{"success": false, "error": errors.New("boom")}},
			contains: []string{"Query failed: boom"},
		},
		{
			name:     "unknown",
			event:    Event{Name: "custom/event", Data: map[string]interface{}{"k": 1}},
			contains: []string{"custom/event"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := f.Format(tt.event)
			for _, want := range tt.contains {
				assert.Contains(t, out, want)
			}
		})
	}
}

func TestFormatterHandleWrites(t *testing.T) {
	var buf bytes.Buffer
	f := NewOutputFormatter(&buf)
	f.Handle(Event{Name: QueryInvoked, Data: map[string]interface{}{"chain": "S ⋈ R"}})
	assert.Equal(t, "[0µs] Chain: S ⋈ R\n", buf.String())
}
