package cell

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pair struct {
	a, b int
}

func eqInt(x, y int) bool { return x == y }

func TestSelectReturnsCurrentSelection(t *testing.T) {
	c := New(pair{a: 1, b: 2})

	got, release := Select(c, func(p pair) int { return p.b }, eqInt, func(int) {})
	defer release()

	assert.Equal(t, 2, got)
	assert.Equal(t, 1, c.Len())
}

func TestSetNotifiesOnlyChangedSelections(t *testing.T) {
	c := New(pair{a: 1, b: 1})

	var aSeen, bSeen []int
	_, releaseA := Select(c, func(p pair) int { return p.a }, eqInt, func(v int) { aSeen = append(aSeen, v) })
	_, releaseB := Select(c, func(p pair) int { return p.b }, eqInt, func(v int) { bSeen = append(bSeen, v) })
	defer releaseA()
	defer releaseB()

	c.Set(pair{a: 2, b: 1})
	c.Set(pair{a: 2, b: 5})
	c.Set(pair{a: 2, b: 5})

	assert.Equal(t, []int{2}, aSeen)
	assert.Equal(t, []int{5}, bSeen)
	assert.Equal(t, uint64(3), c.Version())
}

func TestSetNotifiesInRegistrationOrder(t *testing.T) {
	c := New(0)
	var order []string
	identity := func(v int) int { return v }

	_, r1 := Select(c, identity, eqInt, func(int) { order = append(order, "first") })
	_, r2 := Select(c, identity, eqInt, func(int) { order = append(order, "second") })
	_, r3 := Select(c, identity, eqInt, func(int) { order = append(order, "third") })
	defer r1()
	defer r2()
	defer r3()

	c.Set(1)
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestReleaseIsIdempotent(t *testing.T) {
	c := New(0)
	calls := 0
	_, release := Select(c, func(v int) int { return v }, eqInt, func(int) { calls++ })

	release()
	release()
	c.Set(1)

	assert.Equal(t, 0, calls)
	assert.Equal(t, 0, c.Len())
}

func TestObserverReleasedDuringSetIsSkipped(t *testing.T) {
	c := New(0)
	identity := func(v int) int { return v }

	var releaseSecond func()
	secondCalls := 0
	_, releaseFirst := Select(c, identity, eqInt, func(int) { releaseSecond() })
	_, releaseSecond = Select(c, identity, eqInt, func(int) { secondCalls++ })
	defer releaseFirst()

	c.Set(1)
	assert.Equal(t, 0, secondCalls)
}

func TestCallbackMayReadCell(t *testing.T) {
	c := New(0)
	var seen int
	_, release := Select(c, func(v int) int { return v }, eqInt, func(int) { seen = c.Get() })
	defer release()

	c.Set(7)
	assert.Equal(t, 7, seen)
}

func TestConcurrentSetAndSelect(t *testing.T) {
	c := New(0)
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, release := Select(c, func(v int) int { return v % 2 }, eqInt, func(int) {})
			c.Set(i)
			release()
		}(i)
	}
	wg.Wait()

	require.Equal(t, 0, c.Len())
	assert.Equal(t, uint64(8), c.Version())
}
