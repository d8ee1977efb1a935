package workers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorkers_RunInvokesEveryWorkerInOrder(t *testing.T) {
	var order []string

	w := NewWorkers(
		WorkerFunc(func() { order = append(order, "first") }),
		WorkerFunc(func() { order = append(order, "second") }),
	)
	w.Add(WorkerFunc(func() { order = append(order, "third") }))

	w.Run()

	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestWorkers_RunWithNoWorkers(t *testing.T) {
	assert.NotPanics(t, func() { NewWorkers().Run() })
}
