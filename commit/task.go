// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package commit

import (
	"runtime"
	"sync/atomic"
)

// This file provides a small task execution framework used to parallelize the
// digest computation when sealing an epoch. It only supports a tree structure
// of tasks, where each task may have multiple dependencies but a single
// parent task depending on it; these properties are not verified.
//
// The intended usage is to
//  1. create a set of tasks, closed under dependencies, topologically sorted
//     such that no task appears before any of its dependencies
//  2. call runTasks() with the set of tasks
//
// The framework executes the tasks in parallel, respecting dependencies, and
// returns once all tasks have been completed.

// task is one unit of work, storing the action to be performed, the number of
// yet unfulfilled dependencies, and an optional parent task to notify once
// the task has been completed.
type task struct {
	action          func()
	numDependencies atomic.Int32
	parentTask      *task
}

// newTask creates a task with the given action that becomes runnable once the
// given number of dependencies has completed.
func newTask(action func(), numDependencies int) *task {
	t := &task{action: action}
	t.numDependencies.Store(int32(numDependencies))
	return t
}

// run executes the task's action and returns the parent task if it became
// ready to run as a result, nil otherwise.
func (t *task) run() *task {
	t.action()
	if t.parentTask == nil {
		return nil
	}
	if t.parentTask.numDependencies.Add(-1) != 0 {
		return nil
	}
	return t.parentTask
}

// sequentialCutOff is the task count below which parallel execution is not
// worth its overhead.
const sequentialCutOff = 64

// runTasks executes the given tasks, respecting their dependencies. The
// provided list must include all tasks needed to satisfy dependencies; this
// is not validated, and missing dependencies deadlock.
func runTasks(tasks []*task) {
	if len(tasks) < sequentialCutOff {
		for _, t := range tasks {
			t.action()
		}
		return
	}

	numWorkers := runtime.NumCPU() - 1 // + this thread

	// Collect all tasks ready to run.
	workList := make([]*task, 0, len(tasks))
	for _, t := range tasks {
		if t.numDependencies.Load() == 0 {
			workList = append(workList, t)
		}
	}

	completed := atomic.Uint32{}
	pos := atomic.Int32{}
	processTasks := func() {
		for {
			next := pos.Add(1) - 1
			if int(next) >= len(workList) {
				return
			}
			// Run this task and all tasks becoming ready as a result.
			t := workList[next]
			for t != nil {
				t = t.run()
				completed.Add(1)
			}
		}
	}

	for range numWorkers {
		go processTasks()
	}
	processTasks()

	// The tasks are short and well balanced; busy waiting for the last
	// worker is faster than a wait-group here.
	for completed.Load() < uint32(len(tasks)) {
		runtime.Gosched()
	}
}
