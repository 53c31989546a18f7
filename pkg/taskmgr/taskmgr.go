/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package taskmgr runs periodic maintenance tasks (backlog sweeps, expired
// data cleanup) such that exactly one instance in a cluster performs each
// task. Coordination happens through a shared permit record in the common
// database.
package taskmgr

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hyperledger/aries-framework-go/spi/storage"

	"github.com/trustbloc/dataspace-connector/pkg/lifecycle"

	"github.com/trustbloc/dataspace-connector/internal/pkg/log"
)

const (
	coordinationPermitKey = "task-permit"
	defaultCheckInterval  = 10 * time.Second
)

var logger = log.New("task-manager")

type status = string

const (
	statusIdle    status = "idle"
	statusRunning status = "running"
)

// permit is an entry in the coordination store ensuring that only one
// instance within a cluster has the duty of running a given task.
type permit struct {
	TaskID        string `json:"task_id"`
	CurrentHolder string `json:"currentHolder"`
	Status        string `json:"status"`
	UpdatedTime   int64  `json:"updateTime"` // Unix timestamp.
}

// Manager manages scheduled tasks which are run by exactly one instance in
// a cluster.
type Manager struct {
	*lifecycle.Lifecycle

	interval          time.Duration
	tasks             map[string]*registration
	done              chan struct{}
	coordinationStore storage.Store
	instanceID        string
	mutex             sync.RWMutex
}

// New returns a new task manager. Every instance in the cluster must point
// coordinationStore at the same database. When the permit-holding instance
// goes down, another instance takes over the duty after the task's maximum
// run time has elapsed. Register tasks with RegisterTask, then call Start.
func New(coordinationStore storage.Store, interval time.Duration) *Manager {
	if interval <= 0 {
		interval = defaultCheckInterval
	}

	s := &Manager{
		interval:          interval,
		done:              make(chan struct{}),
		coordinationStore: coordinationStore,
		instanceID:        uuid.New().String(),
		tasks:             make(map[string]*registration),
	}

	s.Lifecycle = lifecycle.New("task-manager",
		lifecycle.WithStart(s.start),
		lifecycle.WithStop(s.stop))

	return s
}

// InstanceID returns the unique ID of this instance, used as the permit
// holder name.
func (s *Manager) InstanceID() string {
	return s.instanceID
}

// RegisterTask registers a task to be periodically run at the given
// interval. A task is considered to have been running too long if the run
// time exceeds maxRunTime, at which point another instance may take over.
func (s *Manager) RegisterTask(id string, interval, maxRunTime time.Duration, task func()) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.tasks[id] = &registration{
		handle:     task,
		id:         id,
		interval:   interval,
		maxRunTime: maxRunTime,
	}
}

func (s *Manager) getTasks() []*registration {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var tasks []*registration

	for _, t := range s.tasks {
		tasks = append(tasks, t)
	}

	return tasks
}

func (s *Manager) start() {
	go func() {
		logger.Info("Started task manager.", log.WithInstanceID(s.instanceID))

		for {
			select {
			case <-time.After(s.interval):
				for _, t := range s.getTasks() {
					s.run(t)
				}
			case <-s.done:
				logger.Debug("Stopped task manager.")

				return
			}
		}
	}()
}

func (s *Manager) stop() {
	close(s.done)
}

func (s *Manager) run(t *registration) {
	if t.isRunning() {
		logger.Debug("Task is already running", log.WithTaskID(t.id))

		return
	}

	ok, err := s.shouldRun(t)
	if err != nil {
		logger.Warn("Error checking whether task should run", log.WithTaskID(t.id), log.WithError(err))

		return
	}

	if !ok {
		return
	}

	if err := s.updatePermit(t.id, statusRunning); err != nil {
		logger.Error("Failed to update permit for task", log.WithTaskID(t.id), log.WithError(err))

		return
	}

	go func(t *registration) {
		logger.Debug("Running task", log.WithTaskID(t.id))

		t.run()

		if err := s.updatePermit(t.id, statusIdle); err != nil {
			logger.Error("Failed to update permit", log.WithTaskID(t.id), log.WithError(err))
		}

		logger.Debug("Finished running task", log.WithTaskID(t.id))
	}(t)
}

func (s *Manager) shouldRun(t *registration) (bool, error) {
	currentPermitBytes, err := s.coordinationStore.Get(getPermitKey(t.id))
	if err != nil {
		if errors.Is(err, storage.ErrDataNotFound) {
			logger.Info("No existing permit found for task. Taking on the duty of running it.",
				log.WithInstanceID(s.instanceID), log.WithTaskID(t.id))

			return true, nil
		}

		return false, fmt.Errorf("get permit from DB for task [%s]: %w", t.id, err)
	}

	var currentPermit permit

	if err := json.Unmarshal(currentPermitBytes, &currentPermit); err != nil {
		return false, fmt.Errorf("unmarshal permit for task [%s]: %w", t.id, err)
	}

	// The permit timestamp has one-second precision, so truncate the
	// elapsed time accordingly.
	timeSinceLastUpdate := time.Since(time.Unix(currentPermit.UpdatedTime, 0)).Truncate(time.Second)

	if currentPermit.CurrentHolder == s.instanceID {
		return timeSinceLastUpdate >= t.interval, nil
	}

	// Only take the duty away from the current permit holder when it has
	// been quiet for longer than the task's maximum run time, which
	// indicates that the holder is down or not responding.
	if timeSinceLastUpdate > t.maxRunTime {
		logger.Info("The current permit holder has not performed a run in an unusually long time. "+
			"Taking over the permit.", log.WithPermitHolder(currentPermit.CurrentHolder),
			log.WithTaskID(t.id), log.WithDuration(timeSinceLastUpdate), log.WithInstanceID(s.instanceID))

		return true, nil
	}

	return false, nil
}

func (s *Manager) updatePermit(taskID string, status status) error {
	p := permit{
		TaskID:        taskID,
		CurrentHolder: s.instanceID,
		Status:        status,
		UpdatedTime:   time.Now().Unix(),
	}

	permitBytes, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal permit: %w", err)
	}

	if err := s.coordinationStore.Put(getPermitKey(taskID), permitBytes); err != nil {
		return fmt.Errorf("failed to store permit: %w", err)
	}

	return nil
}

func getPermitKey(taskID string) string {
	return coordinationPermitKey + "_" + taskID
}

type registration struct {
	handle     func()
	running    uint32
	id         string
	interval   time.Duration
	maxRunTime time.Duration
}

func (r *registration) run() {
	if !atomic.CompareAndSwapUint32(&r.running, 0, 1) {
		// Already running.
		return
	}

	r.handle()

	atomic.StoreUint32(&r.running, 0)
}

func (r *registration) isRunning() bool {
	return atomic.LoadUint32(&r.running) == 1
}
