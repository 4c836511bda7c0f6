package power

import (
	"fmt"

	"github.com/ja7ad/powerest/pkg/util"
)

// collection is the insertion-ordered instance list every submodule owns.
// An instance's identity is its index.
type collection[T any] struct {
	items    []*T
	notFound error
}

func newCollection[T any](notFound error) collection[T] {
	return collection[T]{notFound: notFound}
}

func (c *collection[T]) len() int { return len(c.items) }

func (c *collection[T]) at(i int) (*T, error) {
	if i < 0 || i >= len(c.items) {
		return nil, fmt.Errorf("%w: index %d (have %d)", c.notFound, i, len(c.items))
	}
	return c.items[i], nil
}

func (c *collection[T]) snapshot() []T {
	out := make([]T, len(c.items))
	for i, it := range c.items {
		out[i] = *it
	}
	return out
}

func (c *collection[T]) append(v T) int {
	c.items = append(c.items, &v)
	return len(c.items) - 1
}

func (c *collection[T]) remove(i int) error {
	if _, err := c.at(i); err != nil {
		return err
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
	return nil
}

// others yields every item except the one at skip (-1 keeps all). Validation
// of an update must not compare an instance with itself.
func (c *collection[T]) others(skip int) []*T {
	out := make([]*T, 0, len(c.items))
	for i, it := range c.items {
		if i != skip {
			out = append(out, it)
		}
	}
	return out
}

// spread assigns every item its share of the summed power and returns the sum.
// It must run after all raw powers are known.
func spread[T any](items []*T, power func(*T) float64, set func(*T, float64)) float64 {
	var total float64
	for _, it := range items {
		total += power(it)
	}
	for _, it := range items {
		set(it, util.Percent(power(it), total))
	}
	return total
}
